package allocation

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/iwvelando/price-allocation/pkg/mathutil"
	"go.uber.org/zap"
)

// yearStartProfile mimics the first n hours of a day-ahead price series:
// a daily cycle, a weekly dip and a few negative-price hours.
func yearStartProfile(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		hour := float64(i)
		prices[i] = 35 + 12*math.Sin(hour/24*2*math.Pi) - 6*math.Cos(hour/168*2*math.Pi) + float64(i%7)
		if i%97 == 0 {
			prices[i] = -5
		}
	}
	return prices
}

// TestPerformance checks that a run over the default record limit finishes
// quickly and stays feasible.
func TestPerformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}

	series := hourlySeries(t, yearStartProfile(1000)...)
	settings := DefaultSettings()

	start := time.Now()
	result, err := Optimize(context.Background(), zap.NewNop(), series, settings)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	t.Logf("Performance metrics:")
	t.Logf("  Slots: %d", series.Len())
	t.Logf("  Iterations: %d (%s)", result.Iterations, result.Status)
	t.Logf("  Total time: %v", elapsed)

	if elapsed > 10*time.Second {
		t.Errorf("Total processing time %v exceeds 10 second threshold", elapsed)
	}
	if sum := mathutil.Sum(result.Allocation); math.Abs(sum-settings.TargetTotal) > settings.Tolerance {
		t.Errorf("allocation sums to %v, expected %v", sum, settings.TargetTotal)
	}
	if lowest := mathutil.Min(result.Allocation); lowest < 0 {
		t.Errorf("allocation has negative entry %v", lowest)
	}
}

// TestRepeatedRuns validates that repeated runs produce identical results.
func TestRepeatedRuns(t *testing.T) {
	series := hourlySeries(t, yearStartProfile(200)...)
	settings := DefaultSettings()

	first, err := Optimize(context.Background(), zap.NewNop(), series, settings)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Optimize(context.Background(), zap.NewNop(), series, settings)
		if err != nil {
			t.Fatalf("Optimize() failed on iteration %d: %v", i, err)
		}
		if again.Iterations != first.Iterations {
			t.Fatalf("iteration %d took %d iterations, expected %d", i, again.Iterations, first.Iterations)
		}
		for j := range first.Allocation {
			if again.Allocation[j] != first.Allocation[j] {
				t.Fatalf("iteration %d slot %d = %v, expected %v", i, j, again.Allocation[j], first.Allocation[j])
			}
		}
	}
}

func BenchmarkSolve(b *testing.B) {
	for _, n := range []int{24, 168, 1000} {
		prices := yearStartProfile(n)
		observations := make([]PriceObservation, n)
		for i, p := range prices {
			observations[i] = PriceObservation{Timestamp: seriesStart.Add(time.Duration(i) * time.Hour), Price: p}
		}
		series, err := NewPriceSeries(observations)
		if err != nil {
			b.Fatalf("failed to build series: %v", err)
		}
		problem, err := Formulate(series, DefaultSettings())
		if err != nil {
			b.Fatalf("Formulate() error = %v", err)
		}

		b.Run(fmt.Sprintf("slots=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := Solve(context.Background(), nil, problem); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
