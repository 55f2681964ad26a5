package optimization

import (
	"testing"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
)

func TestNewSummary(t *testing.T) {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := allocation.NewPriceSeries([]allocation.PriceObservation{
		{Timestamp: start, Price: 1},
		{Timestamp: start.Add(time.Hour), Price: 2},
		{Timestamp: start.Add(2 * time.Hour), Price: 3},
	})
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}
	settings := allocation.Settings{TargetTotal: 100, SmoothnessWeight: 50, Tolerance: 1e-6, MaxIterations: 10}
	result := &allocation.Result{
		Allocation: []float64{50, 30, 20},
		Objective:  12,
		Cost:       10,
		Roughness:  0.04,
		Status:     allocation.StatusConverged,
		Iterations: 7,
	}

	s := NewSummary("run-1", series, settings, result)

	if s.RunID != "run-1" || s.Status != "converged" || !s.Converged {
		t.Errorf("unexpected identity fields: %+v", s)
	}
	if s.Slots != 3 {
		t.Errorf("Slots = %d, expected 3", s.Slots)
	}
	if !s.FirstSlot.Equal(start) || !s.LastSlot.Equal(start.Add(2*time.Hour)) {
		t.Errorf("slot range = %v..%v", s.FirstSlot, s.LastSlot)
	}
	if s.Penalty != allocation.DefaultPenalty {
		t.Errorf("Penalty = %v, expected default %v", s.Penalty, allocation.DefaultPenalty)
	}
	if s.Iterations != 7 || s.Objective != 12 {
		t.Errorf("unexpected result fields: %+v", s)
	}
}

func TestSummarySetTiming(t *testing.T) {
	var s Summary
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 7200))

	s.SetTiming(started, 1500*time.Millisecond)

	if s.StartedAt.Location() != time.UTC || !s.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, expected %v in UTC", s.StartedAt, started)
	}
	if s.DurationSeconds != 1.5 {
		t.Errorf("DurationSeconds = %v, expected 1.5", s.DurationSeconds)
	}
}
