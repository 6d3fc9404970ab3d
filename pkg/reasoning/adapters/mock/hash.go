package mock

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedding builds a deterministic unit vector for text. Every lowercase
// word contributes a pseudo-random vector seeded by its hash, so texts that
// share words point in similar directions.
func HashEmbedding(text string, dimensions int) []float32 {
	embedding := make([]float32, dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		words = []string{text}
	}

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		seed := h.Sum64()

		for i := 0; i < dimensions; i++ {
			// Linear congruential generator mapped to [-1, 1]
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return normalize(embedding)
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
