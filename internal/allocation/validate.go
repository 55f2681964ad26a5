package allocation

import (
	"math"

	"github.com/iwvelando/price-allocation/pkg/mathutil"
)

// machineEpsilon is the float64 unit round-off.
const machineEpsilon = 2.220446049250313e-16

// Slack returns the numerical slack δ used by ValidateResult. It equals the
// tolerance unless that is below the round-off bound of summing n entries of
// magnitude up to the target total, 4·n·ε·max(1, T). The guarantee that the
// sum is within the tolerance of T therefore holds only when the tolerance is
// above that floor; below it the check uses the floor.
func Slack(problem *Problem) float64 {
	s := problem.settings
	roundoff := 4 * float64(problem.Len()) * machineEpsilon * math.Max(1, s.TargetTotal)
	return math.Max(s.Tolerance, roundoff)
}

// ValidateResult clips entries within −δ of zero to zero, then confirms that
// every entry is non-negative and that the sum is within δ of the target.
// The result is updated in place, including its objective.
func ValidateResult(problem *Problem, result *Result) error {
	delta := Slack(problem)
	target := problem.settings.TargetTotal
	x := result.Allocation

	if len(x) != problem.Len() {
		return &InfeasibleResultError{Reason: "allocation length does not match the series", Target: target, Tolerance: delta}
	}
	if !mathutil.AllFinite(x) {
		return &InfeasibleResultError{Reason: "allocation contains non-finite values", Target: target, Tolerance: delta}
	}

	for i, v := range x {
		if v >= 0 {
			continue
		}
		if v < -delta {
			return &InfeasibleResultError{
				Reason:    "allocation is negative beyond the slack",
				Sum:       mathutil.Sum(x),
				Target:    target,
				Min:       v,
				Tolerance: delta,
			}
		}
		x[i] = 0
	}

	sum := mathutil.Sum(x)
	if math.Abs(sum-target) > delta {
		return &InfeasibleResultError{
			Reason:    "allocation does not sum to the target",
			Sum:       sum,
			Target:    target,
			Min:       mathutil.Min(x),
			Tolerance: delta,
		}
	}

	result.Cost = mathutil.Dot(problem.cost, x)
	result.Roughness = mathutil.Roughness(x)
	result.Objective = result.Cost + problem.settings.SmoothnessWeight*result.Roughness
	return nil
}
