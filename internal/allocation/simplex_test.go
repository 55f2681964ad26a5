package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/iwvelando/price-allocation/pkg/mathutil"
)

func TestProjectSimplex(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		total    float64
		expected []float64
	}{
		{"Already feasible", []float64{1, 2, 3}, 6, []float64{1, 2, 3}},
		{"Shift down", []float64{1, 2, 3}, 3, []float64{0, 1, 2}},
		{"Negative entry clipped", []float64{-5, 1}, 2, []float64{0, 2}},
		{"Shift up", []float64{0, 0, 0, 0}, 8, []float64{2, 2, 2, 2}},
		{"Single dominant", []float64{10, -3, -4}, 1, []float64{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float64, len(tt.input))
			scratch := make([]float64, len(tt.input))
			if err := projectSimplex(dst, tt.input, tt.total, scratch); err != nil {
				t.Fatalf("projectSimplex() error = %v", err)
			}
			for i := range tt.expected {
				if math.Abs(dst[i]-tt.expected[i]) > 1e-12 {
					t.Errorf("projectSimplex() = %v, expected %v", dst, tt.expected)
					break
				}
			}
		})
	}
}

// The projection p of v satisfies ⟨v − p, y − p⟩ ≤ 0 for every feasible y;
// checking the simplex vertices is sufficient.
func TestProjectSimplexIsNearestPoint(t *testing.T) {
	v := []float64{3.2, -1.5, 0.7, 2.9, 0.01, -0.4, 1.8}
	total := 5.0
	p := make([]float64, len(v))
	if err := projectSimplex(p, v, total, make([]float64, len(v))); err != nil {
		t.Fatalf("projectSimplex() error = %v", err)
	}

	if math.Abs(mathutil.Sum(p)-total) > 1e-12 {
		t.Fatalf("projection sum = %v, expected %v", mathutil.Sum(p), total)
	}
	if mathutil.Min(p) < 0 {
		t.Fatalf("projection has negative entries: %v", p)
	}

	for vertex := range v {
		var inner float64
		for i := range v {
			y := 0.0
			if i == vertex {
				y = total
			}
			inner += (v[i] - p[i]) * (y - p[i])
		}
		if inner > 1e-9 {
			t.Errorf("vertex %d violates the projection inequality: %v", vertex, inner)
		}
	}
}

func TestProjectSimplexRejectsNonFinite(t *testing.T) {
	v := []float64{1, math.NaN()}
	err := projectSimplex(make([]float64, 2), v, 1, make([]float64, 2))
	if !errors.Is(err, ErrNumericInstability) {
		t.Fatalf("expected numeric instability error, got %v", err)
	}
}
