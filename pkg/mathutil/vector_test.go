package mathutil

import (
	"math"
	"testing"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected float64
	}{
		{"Empty", nil, 0},
		{"Single", []float64{2.5}, 2.5},
		{"Mixed signs", []float64{1, -2, 3.5}, 2.5},
		{"Many small values", repeat(0.1, 1000), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sum(tt.input)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("Sum() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestDotAndRoughness(t *testing.T) {
	if got := Dot([]float64{1, 5, 2}, []float64{10, 0, 0}); got != 10 {
		t.Errorf("Dot() = %v, expected 10", got)
	}
	if got := Roughness([]float64{1, 3, 0}); got != 13 {
		t.Errorf("Roughness() = %v, expected 13", got)
	}
	if got := Roughness([]float64{4}); got != 0 {
		t.Errorf("Roughness() of single value = %v, expected 0", got)
	}
}

func TestMaxAbsDiff(t *testing.T) {
	got := MaxAbsDiff([]float64{1, 2, 3}, []float64{1.5, 0, 3})
	if got != 2 {
		t.Errorf("MaxAbsDiff() = %v, expected 2", got)
	}
}

func TestMinArgMax(t *testing.T) {
	values := []float64{3, -1, 7, 7}
	if got := Min(values); got != -1 {
		t.Errorf("Min() = %v, expected -1", got)
	}
	if got := ArgMax(values); got != 2 {
		t.Errorf("ArgMax() = %v, expected 2 (first maximum)", got)
	}
	if got := ArgMax(nil); got != -1 {
		t.Errorf("ArgMax(nil) = %v, expected -1", got)
	}
	if got := Min(nil); !math.IsInf(got, 1) {
		t.Errorf("Min(nil) = %v, expected +Inf", got)
	}
}

func TestAllFinite(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected bool
	}{
		{"Finite", []float64{1, -2, 0}, true},
		{"NaN", []float64{1, math.NaN()}, false},
		{"Positive infinity", []float64{math.Inf(1)}, false},
		{"Negative infinity", []float64{0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllFinite(tt.input); got != tt.expected {
				t.Errorf("AllFinite(%v) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	if !WithinTolerance(100, 100.0000001, 1e-6) {
		t.Error("expected values to be within tolerance")
	}
	if WithinTolerance(100, 100.1, 1e-6) {
		t.Error("expected values to be outside tolerance")
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
