// Package optimization provides shared data structures for allocation results.
package optimization

import (
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
)

// Summary captures the metadata of a single allocation run.
type Summary struct {
	RunID            string    `json:"runId" yaml:"runId"`
	Status           string    `json:"status" yaml:"status"`
	Converged        bool      `json:"converged" yaml:"converged"`
	Objective        float64   `json:"objective" yaml:"objective"`
	Cost             float64   `json:"cost" yaml:"cost"`
	Roughness        float64   `json:"roughness" yaml:"roughness"`
	Iterations       int       `json:"iterations" yaml:"iterations"`
	PrimalResidual   float64   `json:"primalResidual" yaml:"primalResidual"`
	DualResidual     float64   `json:"dualResidual" yaml:"dualResidual"`
	Slots            int       `json:"slots" yaml:"slots"`
	FirstSlot        time.Time `json:"firstSlot" yaml:"firstSlot"`
	LastSlot         time.Time `json:"lastSlot" yaml:"lastSlot"`
	TargetTotal      float64   `json:"targetTotal" yaml:"targetTotal"`
	SmoothnessWeight float64   `json:"smoothnessWeight" yaml:"smoothnessWeight"`
	Tolerance        float64   `json:"tolerance" yaml:"tolerance"`
	MaxIterations    int       `json:"maxIterations" yaml:"maxIterations"`
	Penalty          float64   `json:"penalty" yaml:"penalty"`
	StartedAt        time.Time `json:"startedAt" yaml:"startedAt"`
	DurationSeconds  float64   `json:"durationSeconds" yaml:"durationSeconds"`
	Notes            []string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// NewSummary describes result as solved for series under settings.
func NewSummary(runID string, series allocation.PriceSeries, settings allocation.Settings, result *allocation.Result) Summary {
	s := Summary{
		RunID:            runID,
		Status:           string(result.Status),
		Converged:        result.Status.Converged(),
		Objective:        result.Objective,
		Cost:             result.Cost,
		Roughness:        result.Roughness,
		Iterations:       result.Iterations,
		PrimalResidual:   result.PrimalResidual,
		DualResidual:     result.DualResidual,
		Slots:            series.Len(),
		TargetTotal:      settings.TargetTotal,
		SmoothnessWeight: settings.SmoothnessWeight,
		Tolerance:        settings.Tolerance,
		MaxIterations:    settings.MaxIterations,
		Penalty:          settings.Penalty,
	}
	if series.Len() > 0 {
		s.FirstSlot = series.At(0).Timestamp
		s.LastSlot = series.At(series.Len() - 1).Timestamp
	}
	if s.Penalty == 0 {
		s.Penalty = allocation.DefaultPenalty
	}
	return s
}

// SetTiming records when the run started and how long it took.
func (s *Summary) SetTiming(startedAt time.Time, elapsed time.Duration) {
	s.StartedAt = startedAt.UTC()
	s.DurationSeconds = elapsed.Seconds()
}
