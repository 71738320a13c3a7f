package circuit

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/vqe/mat"
)

const (
	Layers = 5
	// Axes is the number of angles of a Rot.
	Axes      = 3
	NumParams = Layers * NumQubits * Axes

	// ImagTol is the largest imaginary part tolerated in an expectation value.
	ImagTol = 1e-8

	numGates = Layers * (NumQubits + 1)
)

// Index returns the position of an angle in the flat parameter vector.
func Index(layer, wire, axis int) int {
	return (layer*NumQubits+wire)*Axes + axis
}

// Ansatz appends the gates of the strongly entangling layers to dst.
// Each layer rotates qubit 0 and qubit 1, then entangles them with a CNOT.
func Ansatz(dst []Gate, params []float64) []Gate {
	if len(params) != NumParams {
		panic(fmt.Sprintf("%d parameters, expected %d", len(params), NumParams))
	}
	for l := range Layers {
		for w := range NumQubits {
			i := Index(l, w, 0)
			dst = append(dst, Rot{Wire: w, Phi: params[i], Theta: params[i+1], Omega: params[i+2]})
		}
		dst = append(dst, CNOT{Control: 0, Target: 1})
	}
	return dst
}

// Simulate returns the state prepared by the ansatz from |00>.
func Simulate(params []float64) (State, error) {
	var buf [numGates]Gate
	s := NewState()
	s.Apply(Ansatz(buf[:0], params)...)
	if err := s.Check(); err != nil {
		return s, errors.Wrap(err, "")
	}
	return s, nil
}

// Expectation returns <psi|h|psi>.
func Expectation(psi State, h *mat.COO) (float64, error) {
	if h.Rows() != Dim || h.Cols() != Dim {
		return math.NaN(), errors.Wrap(mat.ErrShape, fmt.Sprintf("%dx%d", h.Rows(), h.Cols()))
	}
	e := h.Expect(psi[:])
	if math.Abs(imag(e)) > ImagTol {
		return math.NaN(), errors.Wrap(mat.ErrNonHermitian, fmt.Sprintf("expectation %v", e))
	}
	if math.IsNaN(real(e)) || math.IsInf(real(e), 0) {
		return math.NaN(), errors.Wrap(ErrDivergence, fmt.Sprintf("expectation %v", e))
	}
	return real(e), nil
}

// Evaluate returns the expectation value of h in the state prepared from params.
func Evaluate(params []float64, h *mat.COO) (float64, error) {
	psi, err := Simulate(params)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	e, err := Expectation(psi, h)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	return e, nil
}
