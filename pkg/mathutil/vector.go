// Package mathutil provides common numeric helpers for allocation vectors.
package mathutil

import (
	"math"
)

// Sum returns the sum of the values using Kahan compensation so that long
// allocation vectors keep their total to within a few ulps.
func Sum(values []float64) float64 {
	var sum, comp float64
	for _, v := range values {
		y := v - comp
		t := sum + y
		comp = (t - sum) - y
		sum = t
	}
	return sum
}

// Dot returns the inner product of a and b. The slices must have equal length.
func Dot(a, b []float64) float64 {
	var total float64
	for i := range a {
		total += a[i] * b[i]
	}
	return total
}

// MaxAbsDiff returns the infinity norm of a - b.
func MaxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}

// Roughness returns the sum of squared differences between adjacent values.
func Roughness(values []float64) float64 {
	var total float64
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		total += d * d
	}
	return total
}

// Min returns the smallest value, or +Inf for an empty slice.
func Min(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
func ArgMax(values []float64) int {
	idx := -1
	for i, v := range values {
		if idx < 0 || v > values[idx] {
			idx = i
		}
	}
	return idx
}

// AllFinite reports whether no value is NaN or infinite.
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}
