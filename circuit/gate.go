package circuit

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Gate is a unitary acting on a State.
// The only gates are Rot and CNOT.
type Gate interface {
	apply(s *State)
	fmt.Stringer
}

// Rot is the general single qubit rotation RZ(Omega) RY(Theta) RZ(Phi).
type Rot struct {
	Wire  int
	Phi   float64
	Theta float64
	Omega float64
}

func (g Rot) Matrix() [2][2]complex128 {
	c, s := math.Cos(g.Theta/2), math.Sin(g.Theta/2)
	sum, diff := (g.Phi+g.Omega)/2, (g.Phi-g.Omega)/2
	return [2][2]complex128{
		{cmplx.Exp(complex(0, -sum)) * complex(c, 0), -cmplx.Exp(complex(0, diff)) * complex(s, 0)},
		{cmplx.Exp(complex(0, -diff)) * complex(s, 0), cmplx.Exp(complex(0, sum)) * complex(c, 0)},
	}
}

func (g Rot) apply(s *State) {
	mask := bit(g.Wire)
	u := g.Matrix()
	for i := range s {
		if i&mask != 0 {
			continue
		}
		j := i | mask
		a0, a1 := s[i], s[j]
		s[i] = u[0][0]*a0 + u[0][1]*a1
		s[j] = u[1][0]*a0 + u[1][1]*a1
	}
}

func (g Rot) String() string {
	return fmt.Sprintf("Rot(%g, %g, %g)[%d]", g.Phi, g.Theta, g.Omega, g.Wire)
}

// CNOT flips Target when Control is set.
type CNOT struct {
	Control int
	Target  int
}

func (g CNOT) apply(s *State) {
	if g.Control == g.Target {
		panic(fmt.Sprintf("%#v", g))
	}
	cmask, tmask := bit(g.Control), bit(g.Target)
	for i := range s {
		if i&cmask == 0 || i&tmask != 0 {
			continue
		}
		j := i | tmask
		s[i], s[j] = s[j], s[i]
	}
}

func (g CNOT) String() string {
	return fmt.Sprintf("CNOT[%d,%d]", g.Control, g.Target)
}
