// Package optimizer runs allocation jobs against stored prices and records
// their outcome.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/internal/config"
	"github.com/iwvelando/price-allocation/internal/metrics"
	"github.com/iwvelando/price-allocation/internal/prices"
	"github.com/iwvelando/price-allocation/pkg/optimization"
	"github.com/iwvelando/price-allocation/pkg/output"
	"go.uber.org/zap"
)

// NoteIterationCap is attached to runs that stopped at the iteration cap.
const NoteIterationCap = "solver stopped at the iteration cap; the allocation is feasible but may not be optimal"

// Runner loads prices from a store and optimizes them with the configured
// settings.
type Runner struct {
	logger  *zap.Logger
	conf    *config.Configuration
	store   prices.Store
	metrics *metrics.Metrics
}

// Outcome is the product of one allocation run.
type Outcome struct {
	Table  output.Table
	Result *allocation.Result
}

// Fetcher supplies price observations for ingestion.
type Fetcher interface {
	Fetch(ctx context.Context) ([]allocation.PriceObservation, error)
}

// IngestReport summarizes one ingestion.
type IngestReport struct {
	Fetched  int   `json:"fetched"`
	Inserted int64 `json:"inserted"`
	Stored   int64 `json:"stored"`
}

// NewRunner constructs a Runner for the provided configuration. A nil
// metrics value disables instrumentation.
func NewRunner(logger *zap.Logger, conf *config.Configuration, store prices.Store, m *metrics.Metrics) (*Runner, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("price store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := conf.Optimizer.Validate(); err != nil {
		return nil, err
	}
	return &Runner{logger: logger, conf: conf, store: store, metrics: m}, nil
}

// Run optimizes the oldest RecordLimit stored observations.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	limit := r.conf.Optimizer.RecordLimit
	observations, err := r.store.OldestPrices(ctx, limit)
	if err != nil {
		return nil, err
	}
	r.logger.Info("loaded stored prices",
		zap.String("op", "optimizer.Run"),
		zap.Int("limit", limit),
		zap.Int("observations", len(observations)),
	)

	series, err := allocation.NewPriceSeries(observations)
	if err != nil {
		r.metrics.ObserveRun("", 0, 0)
		return nil, fmt.Errorf("stored prices: %w", err)
	}

	timeout, err := r.conf.Optimizer.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := Execute(ctx, r.logger, r.metrics, series, r.conf.Optimizer.Settings())
	if err != nil {
		return nil, err
	}
	outcome.Table.Summary.Notes = append(outcome.Table.Summary.Notes, r.conf.ValidateConfiguration()...)
	return outcome, nil
}

// Ingest fetches observations and adds the new ones to the store.
func (r *Runner) Ingest(ctx context.Context, source Fetcher) (*IngestReport, error) {
	observations, err := source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	inserted, err := r.store.InsertPrices(ctx, observations)
	if err != nil {
		return nil, err
	}
	r.metrics.AddInserted(inserted)

	stored, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{Fetched: len(observations), Inserted: inserted, Stored: stored}
	r.logger.Info("ingested prices",
		zap.String("op", "optimizer.Ingest"),
		zap.Int("fetched", report.Fetched),
		zap.Int64("inserted", report.Inserted),
		zap.Int64("stored", report.Stored),
	)
	return report, nil
}

// Execute optimizes one series and packages the result with its run
// metadata.
func Execute(ctx context.Context, logger *zap.Logger, m *metrics.Metrics, series allocation.PriceSeries, settings allocation.Settings) (*Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("runId", runID))

	started := time.Now()
	result, err := allocation.Optimize(ctx, logger, series, settings)
	elapsed := time.Since(started)
	if err != nil {
		m.ObserveRun("", 0, elapsed)
		logger.Error("allocation run failed",
			zap.String("op", "optimizer.Execute"),
			zap.Int("slots", series.Len()),
			zap.Error(err),
		)
		return nil, err
	}
	m.ObserveRun(string(result.Status), result.Iterations, elapsed)

	summary := optimization.NewSummary(runID, series, settings, result)
	summary.SetTiming(started, elapsed)
	if !result.Status.Converged() {
		summary.Notes = append(summary.Notes, NoteIterationCap)
		logger.Warn("allocation run hit the iteration cap",
			zap.String("op", "optimizer.Execute"),
			zap.Int("maxIterations", settings.MaxIterations),
			zap.Float64("primalResidual", result.PrimalResidual),
			zap.Float64("dualResidual", result.DualResidual),
		)
	}

	table, err := output.NewTable(summary, series, result)
	if err != nil {
		return nil, err
	}

	logger.Info("allocation run finished",
		zap.String("op", "optimizer.Execute"),
		zap.String("status", string(result.Status)),
		zap.Int("slots", series.Len()),
		zap.Int("iterations", result.Iterations),
		zap.Float64("objective", result.Objective),
		zap.Float64("cost", result.Cost),
		zap.Float64("roughness", result.Roughness),
		zap.Duration("elapsed", elapsed),
	)
	return &Outcome{Table: table, Result: result}, nil
}
