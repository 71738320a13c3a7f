// Package grad estimates gradients of circuit expectation values.
package grad

import (
	"fmt"
	"math"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/fumin/vqe/circuit"
)

const (
	// Shift is the parameter shift of rotations generated by operators with eigenvalues ±1/2.
	Shift = math.Pi / 2

	// DefaultStep is the default step of central finite differences.
	DefaultStep = 1e-4
)

// Cost is a function of the circuit parameters, typically circuit.Evaluate with a fixed observable.
// It must be safe for concurrent use.
type Cost func(params []float64) (float64, error)

// An Estimator writes the gradient of cost at params into dst.
type Estimator interface {
	Gradient(dst, params []float64, cost Cost) error
}

// ParameterShift computes exact gradients with two shifted evaluations per parameter.
// Parameters are processed by up to Workers goroutines, or GOMAXPROCS if Workers is not positive.
type ParameterShift struct {
	Workers int
}

func (ps ParameterShift) Gradient(dst, params []float64, cost Cost) error {
	if len(dst) != len(params) {
		panic(fmt.Sprintf("%d %d", len(dst), len(params)))
	}
	workers := ps.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range params {
		g.Go(func() error {
			shifted := slices.Clone(params)
			shifted[i] = params[i] + Shift
			plus, err := cost(shifted)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d+", i))
			}
			shifted[i] = params[i] - Shift
			minus, err := cost(shifted)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d-", i))
			}
			dst[i] = (plus - minus) / 2
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "")
	}
	return finite(dst)
}

// FiniteDifference approximates gradients with central differences of the given Step.
type FiniteDifference struct {
	Step float64
}

func (fdiff FiniteDifference) Gradient(dst, params []float64, cost Cost) error {
	step := fdiff.Step
	if step == 0 {
		step = DefaultStep
	}

	var err error
	f := func(x []float64) float64 {
		v, err1 := cost(x)
		if err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
		}
		return v
	}
	fd.Gradient(dst, f, params, &fd.Settings{Formula: fd.Central, Step: step})
	if err != nil {
		return err
	}
	return finite(dst)
}

func finite(g []float64) error {
	for i, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(circuit.ErrDivergence, fmt.Sprintf("gradient %d %f", i, v))
		}
	}
	return nil
}
