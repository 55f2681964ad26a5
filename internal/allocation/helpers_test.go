package allocation

import (
	"testing"
	"time"
)

var seriesStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// hourlySeries builds a series with one observation per hour.
func hourlySeries(t *testing.T, prices ...float64) PriceSeries {
	t.Helper()
	observations := make([]PriceObservation, len(prices))
	for i, p := range prices {
		observations[i] = PriceObservation{Timestamp: seriesStart.Add(time.Duration(i) * time.Hour), Price: p}
	}
	series, err := NewPriceSeries(observations)
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}
	return series
}

func settingsWith(total, weight, tolerance float64, maxIterations int) Settings {
	return Settings{
		TargetTotal:      total,
		SmoothnessWeight: weight,
		Tolerance:        tolerance,
		MaxIterations:    maxIterations,
	}
}
