package allocation

import (
	"context"
	"fmt"
	"math"

	"github.com/iwvelando/price-allocation/pkg/mathutil"
	"go.uber.org/zap"
)

// LogInterval is the number of iterations between debug progress logs.
const LogInterval = 500

// Solve runs ADMM on the problem:
//
//	x ← (2λL + ρI)⁻¹ (ρ(z − u) − c)
//	z ← Π_simplex(x + u)
//	u ← u + x − z
//
// starting from the uniform allocation. It stops once ‖x − z‖∞ and
// ‖z − z_prev‖∞ are both below the tolerance, or after MaxIterations. The
// returned allocation is the last z, which is feasible by construction.
//
// The dual residual is the change in z, not the change in u. Since
// u_k − u_{k−1} = x − z, the latter only repeats the primal test, so
// StatusConverged here also requires z to have stopped moving.
//
// ctx is checked once per iteration; cancellation aborts the run with an
// error wrapping ctx.Err().
func Solve(ctx context.Context, logger *zap.Logger, problem *Problem) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if problem == nil {
		return nil, fmt.Errorf("allocation problem cannot be nil")
	}

	settings := problem.settings
	n := problem.Len()
	rho := settings.Penalty
	total := settings.TargetTotal
	cost := problem.cost

	system, err := factorBanded(problem.systemBands())
	if err != nil {
		return nil, err
	}

	x := make([]float64, n)
	z := make([]float64, n)
	u := make([]float64, n)
	prevZ := make([]float64, n)
	work := make([]float64, n)
	scratch := make([]float64, n)
	for i := range z {
		z[i] = total / float64(n)
	}

	status := StatusMaxIterationsReached
	var primal, dual float64
	iterations := 0

	for k := 1; k <= settings.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("allocation solve stopped after %d iterations: %w", iterations, err)
		}

		for i := range work {
			work[i] = rho*(z[i]-u[i]) - cost[i]
		}
		system.solve(x, work)

		copy(prevZ, z)
		for i := range work {
			work[i] = x[i] + u[i]
		}
		if err := projectSimplex(z, work, total, scratch); err != nil {
			return nil, err
		}

		for i := range u {
			u[i] += x[i] - z[i]
		}

		primal = mathutil.MaxAbsDiff(x, z)
		dual = mathutil.MaxAbsDiff(z, prevZ)
		iterations = k

		if math.IsNaN(primal) || math.IsInf(primal, 0) || math.IsNaN(dual) || math.IsInf(dual, 0) {
			return nil, &NumericInstabilityError{Stage: "admm iteration", Index: -1, Reason: fmt.Sprintf("residual diverged at iteration %d", k)}
		}

		if k%LogInterval == 0 {
			logger.Debug("admm progress",
				zap.String("op", "allocation.Solve"),
				zap.Int("iteration", k),
				zap.Float64("primalResidual", primal),
				zap.Float64("dualResidual", dual),
			)
		}

		if primal < settings.Tolerance && dual < settings.Tolerance {
			status = StatusConverged
			break
		}
	}

	allocation := make([]float64, n)
	copy(allocation, z)

	result := &Result{
		Allocation:     allocation,
		Status:         status,
		Iterations:     iterations,
		PrimalResidual: primal,
		DualResidual:   dual,
	}
	result.Cost = mathutil.Dot(cost, allocation)
	result.Roughness = mathutil.Roughness(allocation)
	result.Objective = result.Cost + settings.SmoothnessWeight*result.Roughness

	logger.Debug("admm finished",
		zap.String("op", "allocation.Solve"),
		zap.Int("slots", n),
		zap.String("status", string(status)),
		zap.Int("iterations", iterations),
		zap.Float64("objective", result.Objective),
	)

	return result, nil
}
