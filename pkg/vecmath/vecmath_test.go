package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, -1}, []float32{-1, 1}, -1},
		{"zero left", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"zero both", []float32{0, 0}, []float32{0, 0}, 0},
		{"empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarity_SelfAndSymmetry(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{-3.5, 0.25, 8, 1},
		{1e-3, 7, -2, 0},
		{5, 5, 5, 5},
	}

	for i, a := range vectors {
		assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9, "self similarity of vector %d", i)
		for _, b := range vectors {
			assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))
		}
	}
}

func TestCosineSimilarity_LengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	})
}

func TestWeightedAverage(t *testing.T) {
	a := []float32{1, -2, 0.5, 10}
	b := []float32{3, 4, -0.25, 0}

	got := WeightedAverage(a, b, 0.3, 0.7)
	assert.Len(t, got, len(a))
	for i := range a {
		assert.Equal(t, float32(a[i]*0.3)+float32(b[i]*0.7), got[i], "index %d", i)
	}

	// Inputs are not modified
	assert.Equal(t, []float32{1, -2, 0.5, 10}, a)
}

func TestWeightedAverage_NoRenormalization(t *testing.T) {
	got := WeightedAverage([]float32{2, 0}, []float32{0, 2}, 1, 1)
	assert.Equal(t, []float32{2, 2}, got)
	assert.InDelta(t, math.Sqrt(8), Magnitude(got), 1e-9)
}

func TestWeightedAverage_LengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		WeightedAverage([]float32{1}, []float32{1, 2}, 0.3, 0.7)
	})
}

func TestDotAndMagnitude(t *testing.T) {
	assert.Equal(t, 11.0, Dot([]float32{1, 2}, []float32{3, 4}))
	assert.Equal(t, 5.0, Magnitude([]float32{3, 4}))
	assert.True(t, SameLength([]float32{1}, []float32{2}))
	assert.False(t, SameLength([]float32{1}, nil))
}
