// Package mat implements the small complex matrices used as observables.
package mat

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// HermitianTol is the largest allowed |m_ij - conj(m_ji)|.
	HermitianTol = 1e-9
)

var (
	ErrShape        = errors.New("bad shape")
	ErrNonHermitian = errors.New("not hermitian")
)

var (
	PauliI = [][]complex128{
		{1, 0},
		{0, 1},
	}
	PauliX = [][]complex128{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex128{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex128{
		{1, 0},
		{0, -1},
	}
)

type vRowCol struct {
	v   complex128
	row int
	col int
}

// COO is a sparse matrix in coordinate format, with entries kept in row major order.
type COO struct {
	rows int
	cols int
	Data []vRowCol

	m map[[2]int]complex128
}

func M(dense [][]complex128) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0), m: make(map[[2]int]complex128)}
	for i, row := range dense {
		if len(row) != m.cols {
			panic(fmt.Sprintf("%d %d %d", i, len(row), m.cols))
		}
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

// Real returns the matrix of a dense real slice.
func Real(dense [][]float64) *COO {
	c := make([][]complex128, 0, len(dense))
	for _, row := range dense {
		cr := make([]complex128, 0, len(row))
		for _, v := range row {
			cr = append(cr, complex(v, 0))
		}
		c = append(c, cr)
	}
	return M(c)
}

// Square reshapes a row major slice into a square matrix.
func Square(flat []complex128) (*COO, error) {
	n := int(math.Sqrt(float64(len(flat))))
	for n*n < len(flat) {
		n++
	}
	if n == 0 || n*n != len(flat) {
		return nil, errors.Wrap(ErrShape, fmt.Sprintf("%d values", len(flat)))
	}

	dense := make([][]complex128, n)
	for i := range dense {
		dense[i] = flat[i*n : (i+1)*n]
	}
	return M(dense), nil
}

// SquareReal is Square for real input.
func SquareReal(flat []float64) (*COO, error) {
	c := make([]complex128, 0, len(flat))
	for _, v := range flat {
		c = append(c, complex(v, 0))
	}
	m, err := Square(c)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return m, nil
}

func COOZeros(rows, cols int) *COO {
	m := M([][]complex128{{0}})
	m.Zeros(rows, cols)
	return m
}

func COOIdentity(rows int) *COO {
	m := M([][]complex128{{0}})
	m.Zeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, vRowCol{v: 1, row: i, col: i})
	}
	return m
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

func (m *COO) Scalar(v complex128) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	m.Data = append(m.Data, vRowCol{v: v, row: 0, col: 0})
}

func (m *COO) At(i, j int) complex128 {
	idx, ok := slices.BinarySearchFunc(m.Data, vRowCol{row: i, col: j}, rowMajor)
	if !ok {
		return 0
	}
	return m.Data[idx].v
}

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i, av := range a.Data {
		bv := b.Data[i]
		if av != bv {
			return false
		}
	}
	return true
}

// Add performs a += c*b.
func (a *COO) Add(c complex128, b *COO) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
	}
	if a.m == nil {
		a.m = make(map[[2]int]complex128)
	}
	clear(a.m)
	for _, v := range a.Data {
		a.m[[2]int{v.row, v.col}] = v.v
	}
	for _, bv := range b.Data {
		yx := [2]int{bv.row, bv.col}
		a.m[yx] += c * bv.v
	}

	a.Data = a.Data[:0]
	for yx, v := range a.m {
		if v == 0 {
			continue
		}
		a.Data = append(a.Data, vRowCol{v: v, row: yx[0], col: yx[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
	clear(a.m)
}

// Kron replaces a with the Kronecker product a ⊗ b.
func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

// Expect returns the quadratic form x^† m x.
func (m *COO) Expect(x []complex128) complex128 {
	if m.rows != len(x) || m.cols != len(x) {
		panic(fmt.Sprintf("%dx%d %d", m.rows, m.cols, len(x)))
	}
	var s complex128
	for _, v := range m.Data {
		s += cmplx.Conj(x[v.row]) * v.v * x[v.col]
	}
	return s
}

// Hermitian reports whether m equals its conjugate transpose within HermitianTol.
func (m *COO) Hermitian() error {
	if m.rows != m.cols {
		return errors.Wrap(ErrShape, fmt.Sprintf("%dx%d", m.rows, m.cols))
	}
	for _, v := range m.Data {
		if cmplx.IsNaN(v.v) || cmplx.IsInf(v.v) {
			return errors.Wrap(ErrNonHermitian, fmt.Sprintf("(%d,%d) %v", v.row, v.col, v.v))
		}
		t := m.At(v.col, v.row)
		if cmplx.Abs(v.v-cmplx.Conj(t)) > HermitianTol {
			return errors.Wrap(ErrNonHermitian, fmt.Sprintf("(%d,%d) %v (%d,%d) %v", v.row, v.col, v.v, v.col, v.row, t))
		}
	}
	return nil
}

func (m *COO) Dense() [][]complex128 {
	dense := make([][]complex128, m.rows)
	for i := range dense {
		dense[i] = make([]complex128, m.cols)
	}

	for _, v := range m.Data {
		dense[v.row][v.col] = v.v
	}

	return dense
}

func (m *COO) String() string {
	dense := m.Dense()

	lines := []string{}
	for _, row := range dense {
		cs := []string{}
		for _, v := range row {
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		l := strings.Join(cs, "\t")
		lines = append(lines, l)
	}

	return strings.Join(lines, "\n")
}

type ValVec struct {
	Val float64
	Vec []complex128
}

// Eigen returns the eigen decomposition of a Hermitian matrix, sorted by ascending eigenvalue.
//
// H = A + iB is factorized through its real symmetric embedding [[A, -B], [B, A]],
// whose spectrum is that of H with every eigenvalue doubled.
// An eigenvector [u; w] of the embedding corresponds to u + iw.
func (m *COO) Eigen() ([]ValVec, error) {
	if err := m.Hermitian(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	n := m.rows
	embed := mat.NewSymDense(2*n, nil)
	for _, v := range m.Data {
		if v.row > v.col {
			continue
		}
		re, im := real(v.v), imag(v.v)
		embed.SetSym(v.row, v.col, re)
		embed.SetSym(n+v.row, n+v.col, re)
		embed.SetSym(n+v.row, v.col, im)
		embed.SetSym(n+v.col, v.row, -im)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embed, true); !ok {
		return nil, errors.Errorf("eigen factorization failed %s", m)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	vvs := make([]ValVec, 0, n)
	for k, val := range vals {
		if len(vvs) == n {
			break
		}
		vec := make([]complex128, n)
		for i := range n {
			vec[i] = complex(vecs.At(i, k), vecs.At(n+i, k))
		}
		// Each complex eigenvector appears twice in the embedding, as [u; w] and [-w; u].
		// Keep only the part orthogonal to the ones already accepted.
		for _, prev := range vvs {
			var ip complex128
			for i := range n {
				ip += cmplx.Conj(prev.Vec[i]) * vec[i]
			}
			for i := range n {
				vec[i] -= ip * prev.Vec[i]
			}
		}
		norm := Norm(vec)
		if norm < 1e-6 {
			continue
		}
		for i := range vec {
			vec[i] /= complex(norm, 0)
		}
		vvs = append(vvs, ValVec{Val: val, Vec: vec})
	}
	if len(vvs) != n {
		return nil, errors.Errorf("%d eigenvectors, expected %d", len(vvs), n)
	}
	slices.SortStableFunc(vvs, func(a, b ValVec) int { return cmp.Compare(a.Val, b.Val) })

	return vvs, nil
}

// Norm returns the Euclidean norm of x.
func Norm(x []complex128) float64 {
	var s float64
	for _, v := range x {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

func format(v float64) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := strconv.FormatFloat(v, 'g', 6, 64)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}

func FormatNumpy(v complex128) string {
	switch {
	case imag(v) == 0:
		return strconv.FormatFloat(real(v), 'g', -1, 64)
	default:
		s := strconv.FormatComplex(v, 'g', -1, 128)
		s = strings.ReplaceAll(s, "i", "j")
		return s
	}
}

// ParseNumpy parses a number formatted by FormatNumpy or numpy, e.g. "(1+2j)".
func ParseNumpy(s string) (complex128, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "j", "i")
	v, err := strconv.ParseComplex(s, 128)
	if err != nil {
		return cmplx.NaN(), errors.Wrap(err, "")
	}
	return v, nil
}
