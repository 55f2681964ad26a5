package allocation

import (
	"math"
	"sort"

	"github.com/iwvelando/price-allocation/pkg/mathutil"
)

// projectionSlack is the relative sum error above which the projection is
// treated as failed.
const projectionSlack = 1e-9

// projectSimplex writes into dst the Euclidean projection of v onto
// {z ≥ 0, Σz = total}. scratch must be at least len(v) long.
//
// Sort-and-threshold: with μ the values in descending order, the projection
// is max(v − θ, 0) where θ = (Σ_{j≤k} μ_j − total)/k and k is the largest
// index with μ_k > θ_k.
func projectSimplex(dst, v []float64, total float64, scratch []float64) error {
	n := len(v)
	if !mathutil.AllFinite(v) {
		return &NumericInstabilityError{Stage: "simplex projection", Index: -1, Reason: "input is not finite"}
	}

	sorted := scratch[:n]
	copy(sorted, v)
	sort.Float64s(sorted)

	var cum, theta float64
	for j := 0; j < n; j++ {
		mu := sorted[n-1-j]
		cum += mu
		t := (cum - total) / float64(j+1)
		if mu-t > 0 {
			theta = t
		}
	}

	for i, x := range v {
		dst[i] = math.Max(x-theta, 0)
	}

	// Fold the rounding residue of the sum into the largest entry so the
	// equality holds to the precision of the summation.
	residual := total - mathutil.Sum(dst)
	if math.Abs(residual) > projectionSlack*math.Max(1, total) {
		return &NumericInstabilityError{Stage: "simplex projection", Index: -1, Reason: "projection did not restore the total"}
	}
	k := mathutil.ArgMax(dst)
	dst[k] = math.Max(dst[k]+residual, 0)
	return nil
}
