package allocation

import (
	"math"
)

// bandedSystem is a symmetric tri-diagonal matrix after forward elimination.
// The matrix is fixed for a run, so the elimination is done once and every
// solve is a single forward and backward sweep.
type bandedSystem struct {
	off   []float64 // off-diagonal, len n-1
	pivot []float64 // eliminated diagonal, len n
	mult  []float64 // elimination multipliers off[i-1]/pivot[i-1], len n
}

// factorBanded eliminates the matrix with the given bands. A pivot that is not
// strictly positive means the matrix is not positive definite.
func factorBanded(diag, off []float64) (*bandedSystem, error) {
	n := len(diag)
	if n == 0 || len(off) != n-1 {
		return nil, &NumericInstabilityError{Stage: "banded factorization", Index: -1, Reason: "band lengths do not match"}
	}

	s := &bandedSystem{
		off:   append([]float64(nil), off...),
		pivot: make([]float64, n),
		mult:  make([]float64, n),
	}
	s.pivot[0] = diag[0]
	if err := checkPivot(s.pivot[0], 0); err != nil {
		return nil, err
	}
	for i := 1; i < n; i++ {
		s.mult[i] = off[i-1] / s.pivot[i-1]
		s.pivot[i] = diag[i] - s.mult[i]*off[i-1]
		if err := checkPivot(s.pivot[i], i); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func checkPivot(p float64, i int) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return &NumericInstabilityError{Stage: "banded factorization", Index: i, Reason: "pivot is not finite"}
	}
	if p <= 0 {
		return &NumericInstabilityError{Stage: "banded factorization", Index: i, Reason: "matrix is not positive definite"}
	}
	return nil
}

// solve writes the solution of A·x = rhs into dst. dst may alias rhs.
func (s *bandedSystem) solve(dst, rhs []float64) {
	n := len(s.pivot)
	dst[0] = rhs[0]
	for i := 1; i < n; i++ {
		dst[i] = rhs[i] - s.mult[i]*dst[i-1]
	}
	dst[n-1] /= s.pivot[n-1]
	for i := n - 2; i >= 0; i-- {
		dst[i] = (dst[i] - s.off[i]*dst[i+1]) / s.pivot[i]
	}
}
