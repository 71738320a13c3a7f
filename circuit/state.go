// Package circuit simulates the two qubit variational circuit.
//
// Basis states are indexed by 2*b0 + b1, so qubit 0 is the most significant bit.
package circuit

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"

	"github.com/fumin/vqe/mat"
)

const (
	NumQubits = 2
	// Dim is the dimension of the state space.
	Dim = 1 << NumQubits

	// NormTol is the largest allowed deviation of the state norm from 1.
	NormTol = 1e-9
)

var (
	ErrDivergence = errors.New("non-finite value")
	ErrNorm       = errors.New("state not normalized")
)

// State is a pure state of NumQubits qubits.
type State [Dim]complex128

// NewState returns |00>.
func NewState() State {
	var s State
	s[0] = 1
	return s
}

func (s *State) Apply(gates ...Gate) {
	for _, g := range gates {
		g.apply(s)
	}
}

func (s State) Norm() float64 {
	return mat.Norm(s[:])
}

// Check returns ErrDivergence if an amplitude is not finite, and ErrNorm if s is not normalized.
func (s State) Check() error {
	for i, a := range s {
		if cmplx.IsNaN(a) || cmplx.IsInf(a) {
			return errors.Wrap(ErrDivergence, fmt.Sprintf("amplitude %d %v", i, a))
		}
	}
	if n := s.Norm(); math.Abs(n-1) > NormTol {
		return errors.Wrap(ErrNorm, fmt.Sprintf("%.17g", n))
	}
	return nil
}

func bit(wire int) int {
	if wire < 0 || wire >= NumQubits {
		panic(fmt.Sprintf("wire %d", wire))
	}
	return 1 << (NumQubits - 1 - wire)
}
