// Package allocation distributes a fixed total quantity across ordered time
// slots. It minimizes the price-weighted cost plus a penalty on changes
// between adjacent slots,
//
//	minimize  Σ price[i]·x[i] + λ·Σ (x[i+1] − x[i])²
//	subject to x ≥ 0, Σ x = T,
//
// with an ADMM splitting that pairs a banded direct solve for the quadratic
// term with an exact projection onto the scaled simplex.
package allocation

import (
	"time"

	"github.com/iwvelando/price-allocation/pkg/constants"
)

// PriceObservation is the price of one unit of resource in a single slot.
type PriceObservation struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Price     float64   `json:"price" yaml:"price"`
}

// PriceSeries is an immutable, strictly ascending sequence of observations.
// Construct it with NewPriceSeries.
type PriceSeries struct {
	observations []PriceObservation
}

// NewPriceSeries validates ordering and copies the observations.
func NewPriceSeries(observations []PriceObservation) (PriceSeries, error) {
	if len(observations) < 2 {
		return PriceSeries{}, &ConfigurationError{
			Field:  "series",
			Value:  len(observations),
			Reason: "at least 2 observations are required",
		}
	}
	for i := 1; i < len(observations); i++ {
		prev, cur := observations[i-1].Timestamp, observations[i].Timestamp
		if cur.Equal(prev) {
			return PriceSeries{}, &ConfigurationError{
				Field:  "series",
				Value:  cur,
				Reason: "duplicate timestamp",
			}
		}
		if cur.Before(prev) {
			return PriceSeries{}, &ConfigurationError{
				Field:  "series",
				Value:  cur,
				Reason: "timestamps must be strictly ascending",
			}
		}
	}
	owned := make([]PriceObservation, len(observations))
	copy(owned, observations)
	return PriceSeries{observations: owned}, nil
}

// Len returns the number of slots.
func (s PriceSeries) Len() int {
	return len(s.observations)
}

// At returns the observation for slot i.
func (s PriceSeries) At(i int) PriceObservation {
	return s.observations[i]
}

// Prices returns a copy of the price column.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.observations))
	for i, o := range s.observations {
		out[i] = o.Price
	}
	return out
}

// Observations returns a copy of the observations.
func (s PriceSeries) Observations() []PriceObservation {
	out := make([]PriceObservation, len(s.observations))
	copy(out, s.observations)
	return out
}

// Settings configures a single optimization run. Values are supplied by the
// caller for every run; the package holds no configuration of its own.
type Settings struct {
	TargetTotal      float64 `json:"targetTotal" yaml:"targetTotal"`
	SmoothnessWeight float64 `json:"smoothnessWeight" yaml:"smoothnessWeight"`
	Tolerance        float64 `json:"tolerance" yaml:"tolerance"`
	MaxIterations    int     `json:"maxIterations" yaml:"maxIterations"`
	// Penalty is the ADMM parameter rho. Zero selects DefaultPenalty.
	Penalty float64 `json:"penalty,omitempty" yaml:"penalty,omitempty"`
}

// DefaultPenalty is the ADMM penalty used when Settings.Penalty is zero.
const DefaultPenalty = constants.DefaultPenalty

// DefaultSettings returns the settings of the original DK1 deployment.
func DefaultSettings() Settings {
	return Settings{
		TargetTotal:      constants.DefaultTargetTotal,
		SmoothnessWeight: constants.DefaultSmoothnessWeight,
		Tolerance:        constants.DefaultTolerance,
		MaxIterations:    constants.DefaultMaxIterations,
		Penalty:          DefaultPenalty,
	}
}

func (s Settings) withDefaults() Settings {
	if s.Penalty == 0 {
		s.Penalty = DefaultPenalty
	}
	return s
}

// Status reports how the solver terminated.
type Status string

const (
	// StatusConverged means both residuals fell below the tolerance.
	StatusConverged Status = "converged"
	// StatusMaxIterationsReached means the iteration cap was hit first.
	StatusMaxIterationsReached Status = "max_iterations_reached"
)

// Converged reports whether the run met its tolerance.
func (s Status) Converged() bool {
	return s == StatusConverged
}

// Result is the outcome of one optimization run.
type Result struct {
	Allocation     []float64 `json:"allocation"`
	Objective      float64   `json:"objective"`
	Cost           float64   `json:"cost"`
	Roughness      float64   `json:"roughness"`
	Status         Status    `json:"status"`
	Iterations     int       `json:"iterations"`
	PrimalResidual float64   `json:"primalResidual"`
	DualResidual   float64   `json:"dualResidual"`
}
