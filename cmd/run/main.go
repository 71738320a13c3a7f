// Command run estimates ground state energies of two qubit Hamiltonians and records every run in sqlite.
//
// Example:
//
//	run -d runs/vqe --pauli "0.5:ZZ,-0.3:XI,0.2:IY" --ising 0.5,1,2
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/fumin/vqe"
	"github.com/fumin/vqe/circuit"
	"github.com/fumin/vqe/grad"
	"github.com/fumin/vqe/mat"
	"github.com/fumin/vqe/store"
)

const (
	fnameDB = "vqe.db"
)

var (
	runDir   = flag.StringP("dir", "d", filepath.Join("runs", "vqe"), "run directory")
	input    = flag.StringP("input", "i", "", "CSV file of row major Hamiltonians, one per line")
	pauli    = flag.String("pauli", "", `Hamiltonian as a sum of Pauli strings, e.g. "0.5:ZZ,-0.3:XI"`)
	ising    = flag.Float64Slice("ising", nil, "transverse fields of two spin Ising chains")
	seed     = flag.Uint64("seed", 0, "seed of the initial parameters, random if not set")
	steps    = flag.Int("steps", 400, "gradient descent steps")
	stepSize = flag.Float64("stepsize", 0.1, "gradient descent step size")
	workers  = flag.Int("workers", 0, "parallel gradient evaluations, GOMAXPROCS if not positive")
	gradient = flag.String("gradient", "shift", "gradient estimator, shift or fd")
	verbose  = flag.BoolP("verbose", "v", false, "log every step")
)

type problem struct {
	name string
	h    *mat.COO
}

type config struct {
	seed      uint64
	steps     int
	stepSize  float64
	estimator grad.Estimator
}

type result struct {
	name   string
	id     string
	energy float64
	exact  float64
}

func parsePauli(s string) (*mat.COO, error) {
	terms := make([]mat.PauliTerm, 0)
	for _, ts := range strings.Split(s, ",") {
		ts = strings.TrimSpace(ts)
		coef, ops, ok := strings.Cut(ts, ":")
		if !ok {
			return nil, errors.Errorf("%q: expected coefficient:operators", ts)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(coef), 64)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%q", ts))
		}
		terms = append(terms, mat.PauliTerm{Coef: c, Ops: strings.ToUpper(strings.TrimSpace(ops))})
	}
	h, err := mat.PauliSum(terms)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return h, nil
}

// loadHamiltonians collects the Hamiltonians of all given sources, or the built in scenarios if there are none.
func loadHamiltonians(input, pauli string, fields []float64) ([]problem, error) {
	problems := make([]problem, 0)
	if input != "" {
		hs, err := mat.ReadCSV(input)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		for i, h := range hs {
			problems = append(problems, problem{name: fmt.Sprintf("%s:%d", filepath.Base(input), i), h: h})
		}
	}
	if pauli != "" {
		h, err := parsePauli(pauli)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		problems = append(problems, problem{name: "pauli", h: h})
	}
	for _, field := range fields {
		h, err := mat.TransverseFieldIsing([2]int{circuit.NumQubits, 1}, field)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		problems = append(problems, problem{name: fmt.Sprintf("ising:%g", field), h: h})
	}
	if len(problems) > 0 {
		return problems, nil
	}

	for _, s := range vqe.Scenarios {
		h, err := mat.SquareReal(s.Hamiltonian)
		if err != nil {
			return nil, errors.Wrap(err, s.Name)
		}
		problems = append(problems, problem{name: s.Name, h: h})
	}
	return problems, nil
}

func newEstimator(name string, workers int) (grad.Estimator, error) {
	switch name {
	case "shift":
		return grad.ParameterShift{Workers: workers}, nil
	case "fd":
		return grad.FiniteDifference{Step: grad.DefaultStep}, nil
	default:
		return nil, errors.Errorf("unknown gradient %q", name)
	}
}

func solve(ctx context.Context, st *store.Store, p problem, cfg config, logger zerolog.Logger) (result, error) {
	res := result{name: p.name, energy: math.NaN(), exact: math.NaN()}
	if p.h.Rows() != circuit.Dim || p.h.Cols() != circuit.Dim {
		return res, errors.Wrap(vqe.ErrShape, fmt.Sprintf("%dx%d", p.h.Rows(), p.h.Cols()))
	}
	if err := p.h.Hermitian(); err != nil {
		return res, errors.Wrap(err, "")
	}
	vvs, err := p.h.Eigen()
	if err != nil {
		return res, errors.Wrap(err, "")
	}
	res.exact = vvs[0].Val

	r := store.Run{Name: p.name, Hamiltonian: p.h, Steps: cfg.steps, StepSize: cfg.stepSize, Seed: cfg.seed, Exact: res.exact, Energy: math.NaN()}
	res.id, err = st.CreateRun(ctx, r)
	if err != nil {
		return res, errors.Wrap(err, "")
	}

	opt := vqe.NewOptions().Steps(cfg.steps).StepSize(cfg.stepSize).Seed(cfg.seed).Gradient(cfg.estimator)
	opt = opt.Logger(logger.With().Str("case", p.name).Str("run", res.id).Logger())
	opt = opt.Observe(func(pg vqe.Progress) error {
		return st.AppendCost(ctx, res.id, pg.Iteration, pg.Cost)
	})
	res.energy, err = vqe.OptimizeMatrix(p.h, opt)
	if err != nil {
		return res, errors.Wrap(err, res.id)
	}
	if err := st.Finish(ctx, res.id, res.energy); err != nil {
		return res, errors.Wrap(err, "")
	}
	return res, nil
}

func main() {
	flag.Parse()
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000000"}).Level(level).With().Timestamp().Caller().Logger()

	if err := mainWithErr(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}
}

func mainWithErr() error {
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	st, err := store.Open(filepath.Join(*runDir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer st.Close()

	problems, err := loadHamiltonians(*input, *pauli, *ising)
	if err != nil {
		return errors.Wrap(err, "")
	}
	est, err := newEstimator(*gradient, *workers)
	if err != nil {
		return errors.Wrap(err, "")
	}
	cfg := config{seed: *seed, steps: *steps, stepSize: *stepSize, estimator: est}
	if !flag.CommandLine.Changed("seed") {
		cfg.seed = rand.Uint64()
	}

	ctx := context.Background()
	results := make([]result, 0, len(problems))
	for _, p := range problems {
		res, err := solve(ctx, st, p, cfg, log.Logger)
		if err != nil {
			return errors.Wrap(err, p.name)
		}
		log.Info().Str("case", res.name).Float64("energy", res.energy).Float64("exact", res.exact).Msg("solved")
		results = append(results, res)
	}

	fmt.Printf("case,run,energy,exact,error\n")
	for _, r := range results {
		fmt.Printf("%s,%s,%f,%f,%g\n", r.name, r.id, r.energy, r.exact, r.energy-r.exact)
	}
	return nil
}
