package optimizer

import (
	"context"
	"fmt"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepPoint is the outcome of one smoothness weight in a sweep.
type SweepPoint struct {
	SmoothnessWeight float64 `json:"smoothnessWeight"`
	Objective        float64 `json:"objective"`
	Cost             float64 `json:"cost"`
	Roughness        float64 `json:"roughness"`
	Status           string  `json:"status"`
	Iterations       int     `json:"iterations"`
}

// Sweep solves series once per weight, at most workers runs at a time, and
// returns the points in the order of weights. Runs share no state. The first
// failing run cancels the others.
func Sweep(ctx context.Context, logger *zap.Logger, series allocation.PriceSeries, base allocation.Settings, weights []float64, workers int) ([]SweepPoint, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := validation.ValidateWeights(weights); err != nil {
		return nil, &allocation.ConfigurationError{Field: "weights", Value: weights, Reason: err.Error()}
	}
	if workers < 1 {
		workers = 1
	}

	points := make([]SweepPoint, len(weights))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, weight := range weights {
		i, weight := i, weight
		g.Go(func() error {
			settings := base
			settings.SmoothnessWeight = weight
			runLogger := logger.With(zap.Float64("smoothnessWeight", weight))

			result, err := allocation.Optimize(gctx, runLogger, series, settings)
			if err != nil {
				return fmt.Errorf("smoothness weight %g: %w", weight, err)
			}
			points[i] = SweepPoint{
				SmoothnessWeight: weight,
				Objective:        result.Objective,
				Cost:             result.Cost,
				Roughness:        result.Roughness,
				Status:           string(result.Status),
				Iterations:       result.Iterations,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("sweep finished",
		zap.String("op", "optimizer.Sweep"),
		zap.Int("weights", len(weights)),
		zap.Int("workers", workers),
		zap.Int("slots", series.Len()),
	)
	return points, nil
}
