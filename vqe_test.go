package vqe

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fumin/vqe/grad"
	"github.com/fumin/vqe/mat"
)

var verbose = flag.Bool("verbose", false, "log every step")

func testOptions(t *testing.T) Options {
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(level)
	return NewOptions().Logger(logger)
}

func groundEnergy(t *testing.T, flat []float64) float64 {
	h, err := mat.SquareReal(flat)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	vvs, err := h.Eigen()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return vvs[0].Val
}

func TestOptimize(t *testing.T) {
	t.Parallel()
	for _, s := range Scenarios {
		t.Run(s.Name, func(t *testing.T) {
			t.Parallel()
			h, err := mat.SquareReal(s.Hamiltonian)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			r, err := NewRun(h, testOptions(t).Seed(1))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			e, err := r.Minimize()
			if err != nil {
				t.Fatalf("%+v", err)
			}

			maxDiag := math.Inf(-1)
			for i := range 4 {
				maxDiag = max(maxDiag, s.Hamiltonian[i*4+i])
			}
			if e >= maxDiag {
				t.Fatalf("%f, expected less than %f", e, maxDiag)
			}
			e0 := groundEnergy(t, s.Hamiltonian)
			if math.Abs(e-e0) > 0.05 {
				t.Fatalf("%f, expected %f", e, e0)
			}

			trace := r.Trace()
			if len(trace) != 400 {
				t.Fatalf("%d", len(trace))
			}
			if e > trace[0] {
				t.Fatalf("%f %f", e, trace[0])
			}
			if r.Phase() != Exhausted || r.Iteration() != 400 {
				t.Fatalf("%s %d", r.Phase(), r.Iteration())
			}
		})
	}
}

func TestOptimizeInputs(t *testing.T) {
	t.Parallel()
	s := Scenarios[1]
	opt := NewOptions().Seed(42).Steps(20)

	flat, err := Optimize(s.Hamiltonian, opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	rows := make([][]float64, 0, 4)
	for i := range 4 {
		rows = append(rows, s.Hamiltonian[i*4:(i+1)*4])
	}
	nested, err := OptimizeNested(rows, opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Float64bits(nested) != math.Float64bits(flat) {
		t.Fatalf("%.17g, expected %.17g", nested, flat)
	}

	dense := make([][]complex128, 0, 4)
	for _, row := range rows {
		r := make([]complex128, 0, 4)
		for _, v := range row {
			r = append(r, complex(v, 0))
		}
		dense = append(dense, r)
	}
	cplx, err := OptimizeMatrix(mat.M(dense), opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Float64bits(cplx) != math.Float64bits(flat) {
		t.Fatalf("%.17g, expected %.17g", cplx, flat)
	}
}

func TestComplexHamiltonian(t *testing.T) {
	t.Parallel()
	h, err := mat.PauliSum([]mat.PauliTerm{{Coef: 0.5, Ops: "YX"}, {Coef: -0.3, Ops: "ZI"}, {Coef: 0.2, Ops: "IY"}, {Coef: 0.1, Ops: "ZZ"}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	vvs, err := h.Eigen()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	e, err := OptimizeMatrix(h, testOptions(t).Seed(3))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if e < vvs[0].Val-1e-9 {
		t.Fatalf("%f below the ground energy %f", e, vvs[0].Val)
	}
	if e > vvs[len(vvs)-1].Val+1e-9 {
		t.Fatalf("%f above the largest eigenvalue %f", e, vvs[len(vvs)-1].Val)
	}
}

func TestDeterministic(t *testing.T) {
	t.Parallel()
	h, err := mat.SquareReal(Scenarios[0].Hamiltonian)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	run := func(opt Options) *Run {
		r, err := NewRun(h, opt)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if _, err := r.Minimize(); err != nil {
			t.Fatalf("%+v", err)
		}
		return r
	}
	opt := NewOptions().Seed(7).Steps(30)
	a, b := run(opt), run(opt)
	if !slices.Equal(a.Params(), b.Params()) {
		t.Fatalf("%v, expected %v", a.Params(), b.Params())
	}
	if !slices.Equal(a.Trace(), b.Trace()) {
		t.Fatalf("%v, expected %v", a.Trace(), b.Trace())
	}

	// The number of gradient workers does not change the result.
	c := run(opt.Gradient(grad.ParameterShift{Workers: 1}))
	if !slices.Equal(a.Params(), c.Params()) {
		t.Fatalf("%v, expected %v", c.Params(), a.Params())
	}

	// A different seed starts elsewhere.
	p7, p8 := run(opt.Steps(0)).Params(), run(opt.Seed(8).Steps(0)).Params()
	if slices.Equal(p7, p8) {
		t.Fatalf("%v", p7)
	}
}

func TestFiniteDifference(t *testing.T) {
	t.Parallel()
	h, err := mat.SquareReal(Scenarios[1].Hamiltonian)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	opt := NewOptions().Seed(2).Steps(50)
	shift, err := OptimizeMatrix(h, opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	central, err := OptimizeMatrix(h, opt.Gradient(grad.FiniteDifference{Step: 1e-4}))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(shift-central) > 1e-5 {
		t.Fatalf("%f, expected %f", central, shift)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()
	valid := Scenarios[0].Hamiltonian
	asymmetric := slices.Clone(valid)
	asymmetric[1] += 1e-3
	nan := slices.Clone(valid)
	nan[5] = math.NaN()

	tests := []struct {
		name string
		f    func() (float64, error)
		err  error
	}{
		{
			name: "short",
			f:    func() (float64, error) { return Optimize(valid[:15]) },
			err:  ErrShape,
		},
		{
			name: "long",
			f:    func() (float64, error) { return Optimize(append(slices.Clone(valid), 0)) },
			err:  ErrShape,
		},
		{
			name: "ragged",
			f: func() (float64, error) {
				return OptimizeNested([][]float64{valid[0:4], valid[4:8], valid[8:11], valid[11:16]})
			},
			err: ErrShape,
		},
		{
			name: "3x3",
			f:    func() (float64, error) { return OptimizeMatrix(mat.COOIdentity(3)) },
			err:  ErrShape,
		},
		{
			name: "asymmetric",
			f:    func() (float64, error) { return Optimize(asymmetric) },
			err:  ErrNonHermitian,
		},
		{
			name: "nan",
			f:    func() (float64, error) { return Optimize(nan) },
			err:  ErrNonHermitian,
		},
		{
			name: "antiHermitian",
			f: func() (float64, error) {
				return OptimizeMatrix(mat.M([][]complex128{
					{0, 1, 0, 0},
					{-1, 0, 0, 0},
					{0, 0, 0, 0},
					{0, 0, 0, 0},
				}))
			},
			err: ErrNonHermitian,
		},
		{
			name: "infiniteStepSize",
			f:    func() (float64, error) { return Optimize(valid, NewOptions().Seed(1).StepSize(math.Inf(1))) },
			err:  ErrDivergence,
		},
		{
			name: "nanStepSize",
			f:    func() (float64, error) { return Optimize(valid, NewOptions().Seed(1).StepSize(math.NaN())) },
			err:  ErrDivergence,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			e, err := test.f()
			if !errors.Is(err, test.err) {
				t.Fatalf("%+v, expected %v", err, test.err)
			}
			if !math.IsNaN(e) {
				t.Fatalf("%f", e)
			}
		})
	}
}

func TestPhase(t *testing.T) {
	t.Parallel()
	h, err := mat.SquareReal(Scenarios[1].Hamiltonian)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	r, err := NewRun(h, NewOptions().Seed(5).Steps(2))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	initial := r.Params()
	for i := range 2 {
		if r.Phase() != Stepping {
			t.Fatalf("%d %s", i, r.Phase())
		}
		if err := r.Step(); err != nil {
			t.Fatalf("%+v", err)
		}
		if r.Iteration() != i+1 {
			t.Fatalf("%d, expected %d", r.Iteration(), i+1)
		}
	}
	if r.Phase() != Exhausted {
		t.Fatalf("%s", r.Phase())
	}
	if err := r.Step(); err == nil {
		t.Fatalf("step after exhaustion")
	}
	if slices.Equal(initial, r.Params()) {
		t.Fatalf("parameters did not move")
	}
	e, err := r.Minimize()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	energy, err := r.Energy()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if e != energy {
		t.Fatalf("%f, expected %f", e, energy)
	}

	// Without steps the result is the energy of the initial parameters.
	r, err = NewRun(h, NewOptions().Seed(5).Steps(0))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if r.Phase() != Exhausted {
		t.Fatalf("%s", r.Phase())
	}
	if !slices.Equal(initial, r.Params()) {
		t.Fatalf("%v, expected %v", r.Params(), initial)
	}
	if _, err := r.Minimize(); err != nil {
		t.Fatalf("%+v", err)
	}
	if len(r.Trace()) != 0 {
		t.Fatalf("%v", r.Trace())
	}

	if _, err := NewRun(h, NewOptions().Steps(-1)); err == nil {
		t.Fatalf("negative steps")
	}
}

func TestObserve(t *testing.T) {
	t.Parallel()
	h, err := mat.SquareReal(Scenarios[0].Hamiltonian)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	var progress []Progress
	opt := NewOptions().Seed(9).Steps(10).Observe(func(p Progress) error {
		progress = append(progress, p)
		return nil
	})
	r, err := NewRun(h, opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := r.Minimize(); err != nil {
		t.Fatalf("%+v", err)
	}
	trace := r.Trace()
	if len(progress) != len(trace) {
		t.Fatalf("%d, expected %d", len(progress), len(trace))
	}
	for i, p := range progress {
		if p.Iteration != i || p.Cost != trace[i] || !(p.GradientNorm > 0) {
			t.Fatalf("%d %#v", i, p)
		}
	}

	// An observer error stops the run.
	errStop := errors.New("stop")
	opt = opt.Observe(func(p Progress) error {
		if p.Iteration == 3 {
			return errStop
		}
		return nil
	})
	r, err = NewRun(h, opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := r.Minimize(); !errors.Is(err, errStop) {
		t.Fatalf("%+v, expected %v", err, errStop)
	}
	if r.Phase() != Failed || r.Iteration() != 3 {
		t.Fatalf("%s %d", r.Phase(), r.Iteration())
	}
}

func TestLogging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	opt := NewOptions().Seed(4).Steps(3).Logger(logger).LogEvery(0)
	if _, err := Optimize(Scenarios[0].Hamiltonian, opt); err != nil {
		t.Fatalf("%+v", err)
	}
	out := buf.String()
	for msg, n := range map[string]int{"initialized": 1, "progress": 3, "done": 1} {
		if c := strings.Count(out, fmt.Sprintf(`"message":%q`, msg)); c != n {
			t.Fatalf("%s %d, expected %d\n%s", msg, c, n, out)
		}
	}
	if !strings.Contains(out, `"params":[`) {
		t.Fatalf("%s", out)
	}
}

func TestConcurrentRuns(t *testing.T) {
	t.Parallel()
	opt := NewOptions().Seed(11).Steps(40)
	expected := make([]float64, len(Scenarios))
	for i, s := range Scenarios {
		var err error
		expected[i], err = Optimize(s.Hamiltonian, opt)
		if err != nil {
			t.Fatalf("%+v", err)
		}
	}

	const copies = 4
	got := make([]float64, copies*len(Scenarios))
	var g errgroup.Group
	for i := range got {
		g.Go(func() error {
			e, err := Optimize(Scenarios[i%len(Scenarios)].Hamiltonian, opt)
			if err != nil {
				return errors.Wrap(err, "")
			}
			got[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("%+v", err)
	}
	for i, e := range got {
		if e != expected[i%len(Scenarios)] {
			t.Fatalf("%d %.17g, expected %.17g", i, e, expected[i%len(Scenarios)])
		}
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	m.Run()
}
