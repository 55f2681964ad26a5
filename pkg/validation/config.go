package validation

import (
	"fmt"
	"math"
)

// ValidateWeights checks that every smoothness weight is finite and not negative.
func ValidateWeights(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("at least one weight is required")
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("weight %d (%g) must be finite and not negative", i, w)
		}
	}
	return nil
}
