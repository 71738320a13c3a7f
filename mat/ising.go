package mat

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// TransverseFieldIsing returns the Hamiltonian of spins on an n[0] x n[1] lattice with open boundaries,
//
//	H = -sum_<ij> Z_i Z_j - h sum_i X_i
//
// Spins are numbered row major, and spin 0 is the most significant qubit.
func TransverseFieldIsing(n [2]int, h float64) (*COO, error) {
	numSpins := n[0] * n[1]
	if n[0] <= 0 || n[1] <= 0 {
		return nil, errors.Wrap(ErrShape, fmt.Sprintf("lattice %v", n))
	}

	terms := make([]PauliTerm, 0, 3*numSpins)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			i := y*n[1] + x
			if up := y - 1; up >= 0 {
				terms = append(terms, PauliTerm{Coef: -1, Ops: pauliString(numSpins, 'Z', up*n[1]+x, i)})
			}
			if left := x - 1; left >= 0 {
				terms = append(terms, PauliTerm{Coef: -1, Ops: pauliString(numSpins, 'Z', y*n[1]+left, i)})
			}
			terms = append(terms, PauliTerm{Coef: -h, Ops: pauliString(numSpins, 'X', i)})
		}
	}

	ham, err := PauliSum(terms)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return ham, nil
}

// pauliString returns a Pauli string with op at the given spins and identities elsewhere.
func pauliString(numSpins int, op byte, spins ...int) string {
	b := []byte(strings.Repeat("I", numSpins))
	for _, i := range spins {
		b[i] = op
	}
	return string(b)
}
