package allocation

import (
	"context"

	"go.uber.org/zap"
)

// Optimize formulates, solves and validates one run. Configuration and
// numeric errors abort the run; exhausting MaxIterations does not, and is
// reported through Result.Status.
func Optimize(ctx context.Context, logger *zap.Logger, series PriceSeries, settings Settings) (*Result, error) {
	problem, err := Formulate(series, settings)
	if err != nil {
		return nil, err
	}

	result, err := Solve(ctx, logger, problem)
	if err != nil {
		return nil, err
	}

	if err := ValidateResult(problem, result); err != nil {
		return nil, err
	}
	return result, nil
}
