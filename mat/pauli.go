package mat

import (
	"fmt"

	"github.com/pkg/errors"
)

// PauliTerm is Coef times the tensor product of the Pauli matrices named in Ops, e.g. "ZX" for Z ⊗ X.
type PauliTerm struct {
	Coef float64
	Ops  string
}

// Pauli returns the tensor product of the Pauli matrices named by ops, one of I, X, Y, Z per qubit.
// The first letter acts on the most significant qubit.
func Pauli(ops string) (*COO, error) {
	if len(ops) == 0 {
		return nil, errors.Wrap(ErrShape, "empty pauli string")
	}
	p := M([][]complex128{{0}})
	p.Scalar(1)
	for i, op := range ops {
		var sigma [][]complex128
		switch op {
		case 'I':
			sigma = PauliI
		case 'X':
			sigma = PauliX
		case 'Y':
			sigma = PauliY
		case 'Z':
			sigma = PauliZ
		default:
			return nil, errors.Errorf("%q: unknown operator %q at %d", ops, op, i)
		}
		p.Kron(M(sigma))
	}
	return p, nil
}

// PauliSum returns the sum of the terms, which must all act on the same number of qubits.
func PauliSum(terms []PauliTerm) (*COO, error) {
	if len(terms) == 0 {
		return nil, errors.Wrap(ErrShape, "no terms")
	}
	n := len(terms[0].Ops)
	h := COOZeros(1<<n, 1<<n)
	for _, t := range terms {
		if len(t.Ops) != n {
			return nil, errors.Wrap(ErrShape, fmt.Sprintf("%q has %d qubits, expected %d", t.Ops, len(t.Ops), n))
		}
		p, err := Pauli(t.Ops)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		h.Add(complex(t.Coef, 0), p)
	}
	return h, nil
}
