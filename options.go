package vqe

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/fumin/vqe/grad"
)

// Progress describes a finished optimization step.
type Progress struct {
	// Iteration is the zero based index of the step.
	Iteration int
	// Cost is the expectation value at the parameters the step started from.
	Cost         float64
	GradientNorm float64
}

// Options are options for the optimizer.
type Options struct {
	steps    int
	stepSize float64

	seed    uint64
	seeded  bool
	newRand func() *rand.Rand

	estimator grad.Estimator
	logger    zerolog.Logger
	logEvery  time.Duration
	observe   func(Progress) error
}

// NewOptions returns the default options: 400 steps of size 0.1 with parameter shift gradients.
func NewOptions() Options {
	opt := Options{}
	opt.steps = 400
	opt.stepSize = 0.1
	opt.estimator = grad.ParameterShift{}
	opt.logger = zerolog.Nop()
	opt.logEvery = 10 * time.Second
	return opt
}

// Steps sets the number of gradient descent steps.
func (opt Options) Steps(n int) Options {
	opt.steps = n
	return opt
}

// StepSize sets the learning rate.
func (opt Options) StepSize(x float64) Options {
	opt.stepSize = x
	return opt
}

// Seed makes the initial parameters deterministic.
func (opt Options) Seed(seed uint64) Options {
	opt.seed = seed
	opt.seeded = true
	return opt
}

// Rand sets the source of the initial parameters.
// The function is called once per run, so that runs do not share a generator.
func (opt Options) Rand(newRand func() *rand.Rand) Options {
	opt.newRand = newRand
	return opt
}

// Gradient sets the gradient estimator.
func (opt Options) Gradient(e grad.Estimator) Options {
	opt.estimator = e
	return opt
}

// Logger sets the logger of progress messages.
func (opt Options) Logger(l zerolog.Logger) Options {
	opt.logger = l
	return opt
}

// LogEvery sets the minimum interval between info level progress messages.
// Every step is logged at debug level.
func (opt Options) LogEvery(d time.Duration) Options {
	opt.logEvery = d
	return opt
}

// Observe registers f to be called after every step.
// An error returned by f stops the run.
func (opt Options) Observe(f func(Progress) error) Options {
	opt.observe = f
	return opt
}

func (opt Options) random() *rand.Rand {
	switch {
	case opt.newRand != nil:
		return opt.newRand()
	case opt.seeded:
		return rand.New(rand.NewPCG(opt.seed, opt.seed))
	default:
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}
