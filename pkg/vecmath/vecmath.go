// Package vecmath holds the similarity and composition primitives used by the
// memory store and the retrievers. All functions operate on equal-length
// float32 vectors; passing vectors of different lengths is a programming error
// and panics. Code that handles vectors from an external embedder checks
// SameLength first and reports an error instead.
package vecmath

import (
	"fmt"
	"math"
)

// SameLength reports whether a and b have the same dimension.
func SameLength(a, b []float32) bool {
	return len(a) == len(b)
}

// MustSameLength panics when a and b differ in length.
func MustSameLength(a, b []float32) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vecmath: length mismatch %d != %d", len(a), len(b)))
	}
}

// Dot returns the dot product of a and b, accumulated in float64.
func Dot(a, b []float32) float64 {
	MustSameLength(a, b)

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Magnitude returns the euclidean norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|), a value in [-1, 1].
// A zero-magnitude vector has no direction, so the similarity is 0.
func CosineSimilarity(a, b []float32) float64 {
	MustSameLength(a, b)

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	// Rounding can push the ratio a hair outside the valid range
	sim := dot / denom
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// WeightedAverage returns a[i]*wA + b[i]*wB for every index. The result is not
// renormalized and wA+wB need not sum to 1. The explicit conversions keep the
// compiler from fusing the multiply-add, so results are identical on every
// architecture.
func WeightedAverage(a, b []float32, wA, wB float32) []float32 {
	MustSameLength(a, b)

	out := make([]float32, len(a))
	for i := range a {
		out[i] = float32(a[i]*wA) + float32(b[i]*wB)
	}
	return out
}
