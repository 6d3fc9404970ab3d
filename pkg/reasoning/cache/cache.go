// Package cache memoizes embeddings in process. Fact encoding embeds keys
// such as "favorite_color" over and over; the cache keeps those round trips
// off the provider.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/reasoning"
)

// CachedEmbedder wraps an embedder with a content-hash keyed ristretto cache.
type CachedEmbedder struct {
	next      reasoning.Embedder
	cache     *ristretto.Cache
	namespace string
}

// NewCachedEmbedder caches up to maxEntries vectors produced by next.
// namespace separates vectors of different models sharing a process.
func NewCachedEmbedder(next reasoning.Embedder, namespace string, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachedEmbedder{next: next, cache: c, namespace: namespace}, nil
}

// GenerateEmbeddings implements reasoning.Embedder. Cached texts are served
// locally; the rest are embedded with a single call to the wrapped embedder.
func (e *CachedEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := e.cache.Get(e.key(text)); ok {
			out[i] = append([]float32(nil), v.([]float32)...)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		log.DebugContext(ctx, "Embedding cache hit", "count", len(texts))
		return out, nil
	}

	vectors, err := e.next.GenerateEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	for j, vec := range vectors {
		out[missIdx[j]] = vec
		e.cache.Set(e.key(missTexts[j]), append([]float32(nil), vec...), 1)
	}

	// Make the new entries visible to the next call
	e.cache.Wait()

	log.DebugContext(ctx, "Embedding cache lookup", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

// Close releases the cache.
func (e *CachedEmbedder) Close() {
	e.cache.Close()
}

func (e *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(e.namespace + "\x00" + text))
	return fmt.Sprintf("%x", h)
}
