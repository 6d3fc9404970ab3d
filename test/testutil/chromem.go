package testutil

import (
	"context"
	"testing"

	chromem "github.com/philippgille/chromem-go"
)

// CreateTempChromemGoClient creates a new, in-memory chromem-go instance
// suitable for isolated testing. The cleanup function is a no-op; the
// instance is garbage collected with the test.
func CreateTempChromemGoClient(t *testing.T) (*chromem.DB, func()) {
	t.Helper()
	return chromem.NewDB(), func() {}
}

// VectorTable maps text to a fixed embedding. It is handy when a test needs
// to control the geometry of the vectors a store sees.
type VectorTable map[string][]float32

// EmbeddingFunc returns a chromem-compatible embedding function backed by the
// table. Unknown text yields a zero vector of the given dimension.
func (v VectorTable) EmbeddingFunc(dims int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		if vec, ok := v[text]; ok {
			return append([]float32(nil), vec...), nil
		}
		return make([]float32, dims), nil
	}
}
