// Package testutil provides common utility functions for testing.
package testutil

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/pkg/constants"
)

// SeriesStart is the first slot used by HourlyObservations.
var SeriesStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// HourlyObservations returns one observation per hour starting at SeriesStart.
func HourlyObservations(prices ...float64) []allocation.PriceObservation {
	observations := make([]allocation.PriceObservation, len(prices))
	for i, p := range prices {
		observations[i] = allocation.PriceObservation{
			Timestamp: SeriesStart.Add(time.Duration(i) * time.Hour),
			Price:     p,
		}
	}
	return observations
}

// DailyProfile returns n hourly prices following a daily cycle with a small
// repeating ripple.
func DailyProfile(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 30 + 10*math.Sin(float64(i)/24*2*math.Pi) + float64(i%5)
	}
	return prices
}

// FindObservation finds an observation by timestamp.
// Returns a pointer to the observation if found, nil otherwise.
func FindObservation(observations []allocation.PriceObservation, ts time.Time) *allocation.PriceObservation {
	for i := range observations {
		if observations[i].Timestamp.Equal(ts) {
			return &observations[i]
		}
	}
	return nil
}

// PriceCSV renders observations in the layout of the hourly time series
// download, with an unrelated column in front of the default price column.
func PriceCSV(observations []allocation.PriceObservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,cet_cest_timestamp,DE_load_actual_entsoe_transparency,%s\n",
		constants.DefaultTimestampColumn, constants.DefaultPriceColumn)
	for _, o := range observations {
		fmt.Fprintf(&b, "%s,%s,41000,%g\n",
			o.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			o.Timestamp.Add(time.Hour).UTC().Format("2006-01-02T15:04:05")+"+0100",
			o.Price)
	}
	return b.String()
}
