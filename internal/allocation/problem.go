package allocation

import (
	"fmt"
	"math"

	"github.com/iwvelando/price-allocation/pkg/mathutil"
)

// Problem is the quadratic program derived from a series and settings. It is
// read-only once built.
//
// The smoothness penalty xᵀLx = Σ (x[i+1] − x[i])² uses the tri-diagonal
// matrix L with 2 on the interior diagonal, 1 at both ends and −1 on the
// off-diagonals. Only the bands are stored.
type Problem struct {
	cost     []float64
	settings Settings
}

// Formulate validates the inputs and builds the problem. All checks run
// before any numeric work.
func Formulate(series PriceSeries, settings Settings) (*Problem, error) {
	settings = settings.withDefaults()

	if n := series.Len(); n < 2 {
		return nil, &ConfigurationError{Field: "series", Value: n, Reason: "at least 2 observations are required"}
	}
	if !(settings.TargetTotal > 0) || math.IsInf(settings.TargetTotal, 1) {
		return nil, &ConfigurationError{Field: "targetTotal", Value: settings.TargetTotal, Reason: "must be positive and finite"}
	}
	if !(settings.SmoothnessWeight >= 0) || math.IsInf(settings.SmoothnessWeight, 1) {
		return nil, &ConfigurationError{Field: "smoothnessWeight", Value: settings.SmoothnessWeight, Reason: "must be non-negative and finite"}
	}
	if !(settings.Tolerance > 0) || math.IsInf(settings.Tolerance, 1) {
		return nil, &ConfigurationError{Field: "tolerance", Value: settings.Tolerance, Reason: "must be positive and finite"}
	}
	if settings.MaxIterations < 1 {
		return nil, &ConfigurationError{Field: "maxIterations", Value: settings.MaxIterations, Reason: "must be at least 1"}
	}
	if !(settings.Penalty > 0) || math.IsInf(settings.Penalty, 1) {
		return nil, &ConfigurationError{Field: "penalty", Value: settings.Penalty, Reason: "must be positive and finite"}
	}

	cost := series.Prices()
	for i, p := range cost {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, &ConfigurationError{Field: "series", Value: p, Reason: fmt.Sprintf("price at slot %d is not finite", i)}
		}
	}

	return &Problem{cost: cost, settings: settings}, nil
}

// Len returns the number of slots.
func (p *Problem) Len() int {
	return len(p.cost)
}

// Cost returns a copy of the cost vector c.
func (p *Problem) Cost() []float64 {
	out := make([]float64, len(p.cost))
	copy(out, p.cost)
	return out
}

// Settings returns the settings the problem was built with, defaults applied.
func (p *Problem) Settings() Settings {
	return p.settings
}

// PenaltyBands returns the diagonal and off-diagonal of L.
func (p *Problem) PenaltyBands() (diag, off []float64) {
	n := len(p.cost)
	diag = make([]float64, n)
	off = make([]float64, n-1)
	for i := range diag {
		diag[i] = 2
	}
	diag[0], diag[n-1] = 1, 1
	for i := range off {
		off[i] = -1
	}
	return diag, off
}

// systemBands returns the bands of 2λL + ρI, the x-update matrix.
func (p *Problem) systemBands() (diag, off []float64) {
	diag, off = p.PenaltyBands()
	lambda, rho := p.settings.SmoothnessWeight, p.settings.Penalty
	for i := range diag {
		diag[i] = 2*lambda*diag[i] + rho
	}
	for i := range off {
		off[i] = 2 * lambda * off[i]
	}
	return diag, off
}

// Objective evaluates cᵀx + λ·xᵀLx.
func (p *Problem) Objective(x []float64) float64 {
	return mathutil.Dot(p.cost, x) + p.settings.SmoothnessWeight*mathutil.Roughness(x)
}

