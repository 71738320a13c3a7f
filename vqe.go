// Package vqe estimates the ground state energy of a two qubit Hamiltonian
// by gradient descent on a variational circuit.
//
// The circuit consists of five strongly entangling layers, each rotating both qubits
// by three Euler angles and then entangling them with a CNOT, for 30 parameters in total.
package vqe

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumin/vqe/circuit"
	"github.com/fumin/vqe/mat"
	"github.com/fumin/vqe/util"
)

var (
	ErrShape        = mat.ErrShape
	ErrNonHermitian = mat.ErrNonHermitian
	ErrDivergence   = circuit.ErrDivergence
)

// Optimize returns the minimized expectation value of a 4x4 Hermitian matrix given in row major order.
func Optimize(hamiltonian []float64, options ...Options) (float64, error) {
	if len(hamiltonian) != circuit.Dim*circuit.Dim {
		return math.NaN(), errors.Wrap(ErrShape, fmt.Sprintf("%d values", len(hamiltonian)))
	}
	h, err := mat.SquareReal(hamiltonian)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	e, err := OptimizeMatrix(h, options...)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	return e, nil
}

// OptimizeNested is Optimize for a matrix given as rows.
func OptimizeNested(hamiltonian [][]float64, options ...Options) (float64, error) {
	if len(hamiltonian) != circuit.Dim {
		return math.NaN(), errors.Wrap(ErrShape, fmt.Sprintf("%d rows", len(hamiltonian)))
	}
	flat := make([]float64, 0, circuit.Dim*circuit.Dim)
	for i, row := range hamiltonian {
		if len(row) != circuit.Dim {
			return math.NaN(), errors.Wrap(ErrShape, fmt.Sprintf("row %d has %d values", i, len(row)))
		}
		flat = append(flat, row...)
	}
	e, err := Optimize(flat, options...)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	return e, nil
}

// OptimizeMatrix is Optimize for a complex Hermitian matrix.
func OptimizeMatrix(h *mat.COO, options ...Options) (float64, error) {
	r, err := NewRun(h, options...)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	e, err := r.Minimize()
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	return e, nil
}

// Phase is the phase of a Run.
type Phase int

const (
	Initializing Phase = iota
	Stepping
	Exhausted
	Failed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "Initializing"
	case Stepping:
		return "Stepping"
	case Exhausted:
		return "Exhausted"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Run is a single optimization of the circuit parameters against a Hamiltonian.
// A Run is not safe for concurrent use, but distinct Runs are independent.
type Run struct {
	h   *mat.COO
	opt Options

	phase     Phase
	iteration int
	params    []float64
	gradient  []float64
	trace     []float64

	throttler *util.SkipThrottler
}

// NewRun validates h and draws the initial parameters uniformly from [0, 2π).
func NewRun(h *mat.COO, options ...Options) (*Run, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if opt.steps < 0 {
		return nil, errors.Errorf("negative steps %d", opt.steps)
	}
	if h.Rows() != circuit.Dim || h.Cols() != circuit.Dim {
		return nil, errors.Wrap(ErrShape, fmt.Sprintf("%dx%d", h.Rows(), h.Cols()))
	}
	if err := h.Hermitian(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	r := &Run{h: h, opt: opt, phase: Initializing}
	r.params = make([]float64, circuit.NumParams)
	rnd := opt.random()
	for i := range r.params {
		r.params[i] = rnd.Float64() * 2 * math.Pi
	}
	r.gradient = make([]float64, circuit.NumParams)
	r.trace = make([]float64, 0, opt.steps)
	r.throttler = util.NewSkipThrottler(opt.logEvery)
	opt.logger.Info().Floats64("params", r.params).Int("steps", opt.steps).Float64("stepsize", opt.stepSize).Msg("initialized")

	r.phase = Stepping
	if opt.steps == 0 {
		r.phase = Exhausted
	}
	return r, nil
}

// Step performs one gradient descent step.
func (r *Run) Step() error {
	if r.phase != Stepping {
		return errors.Errorf("step in phase %s", r.phase)
	}
	if err := r.step(); err != nil {
		r.phase = Failed
		r.opt.logger.Error().Err(err).Int("step", r.iteration).Msg("failed")
		return errors.Wrap(err, fmt.Sprintf("step %d", r.iteration))
	}
	r.iteration++
	if r.iteration == r.opt.steps {
		r.phase = Exhausted
	}
	return nil
}

func (r *Run) step() error {
	cost, err := r.cost(r.params)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := r.opt.estimator.Gradient(r.gradient, r.params, r.cost); err != nil {
		return errors.Wrap(err, "")
	}
	floats.AddScaled(r.params, -r.opt.stepSize, r.gradient)
	for i, v := range r.params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(ErrDivergence, fmt.Sprintf("parameter %d %f", i, v))
		}
	}
	r.trace = append(r.trace, cost)

	p := Progress{Iteration: r.iteration, Cost: cost, GradientNorm: floats.Norm(r.gradient, 2)}
	r.opt.logger.Debug().Int("step", p.Iteration).Float64("cost", p.Cost).Float64("gradient", p.GradientNorm).Msg("")
	if r.throttler.Ok() {
		r.opt.logger.Info().Int("step", p.Iteration).Float64("cost", p.Cost).Msg("progress")
	}
	if r.opt.observe != nil {
		if err := r.opt.observe(p); err != nil {
			return errors.Wrap(err, "observe")
		}
	}
	return nil
}

// Minimize steps until the budget is exhausted, and returns the final expectation value.
func (r *Run) Minimize() (float64, error) {
	for r.phase == Stepping {
		if err := r.Step(); err != nil {
			return math.NaN(), errors.Wrap(err, "")
		}
	}
	if r.phase != Exhausted {
		return math.NaN(), errors.Errorf("minimize in phase %s", r.phase)
	}
	e, err := r.Energy()
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	r.opt.logger.Info().Int("steps", r.iteration).Float64("energy", e).Msg("done")
	return e, nil
}

// Energy returns the expectation value at the current parameters.
func (r *Run) Energy() (float64, error) {
	e, err := r.cost(r.params)
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	return e, nil
}

func (r *Run) cost(params []float64) (float64, error) {
	return circuit.Evaluate(params, r.h)
}

func (r *Run) Phase() Phase { return r.phase }

// Iteration returns the number of completed steps.
func (r *Run) Iteration() int { return r.iteration }

// Params returns a copy of the current parameters.
func (r *Run) Params() []float64 { return slices.Clone(r.params) }

// Trace returns a copy of the cost at the start of every completed step.
func (r *Run) Trace() []float64 { return slices.Clone(r.trace) }
