package mmu

import (
	"context"
	"fmt"
	"sort"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/reasoning"
	"github.com/lexlapax/recall/pkg/vecmath"
)

// ScoredRecord is a memory record together with its similarity to a query.
type ScoredRecord struct {
	Record ltm.MemoryRecord
	Score  float64
}

// Retriever ranks stored memories against a free-text query.
type Retriever interface {
	// Retrieve returns at most topN records ordered by decreasing similarity.
	// Ties keep store order. topN <= 0 yields an empty result.
	Retrieve(ctx context.Context, query string, topN int) ([]ScoredRecord, error)
}

// LinearRetriever scores every record against the query embedding.
type LinearRetriever struct {
	store    *ltm.Store
	embedder reasoning.Embedder
}

// NewLinearRetriever creates an exhaustive-scan retriever over store.
func NewLinearRetriever(store *ltm.Store, embedder reasoning.Embedder) *LinearRetriever {
	return &LinearRetriever{store: store, embedder: embedder}
}

// Retrieve implements Retriever.
func (r *LinearRetriever) Retrieve(ctx context.Context, query string, topN int) ([]ScoredRecord, error) {
	if topN <= 0 {
		return []ScoredRecord{}, nil
	}

	records, _ := r.store.Snapshot()
	if len(records) == 0 {
		return []ScoredRecord{}, nil
	}

	queryVec, err := embedQuery(ctx, r.embedder, query, len(records[0].Embedding))
	if err != nil {
		return nil, err
	}

	return TopN(Rank(queryVec, records), topN), nil
}

// Rank scores every record by cosine similarity to query and sorts them by
// decreasing score. The sort is stable, so equal scores keep input order.
// Every record must have the same dimension as query.
func Rank(query []float32, records []ltm.MemoryRecord) []ScoredRecord {
	scored := make([]ScoredRecord, len(records))
	for i, rec := range records {
		scored[i] = ScoredRecord{Record: rec, Score: vecmath.CosineSimilarity(query, rec.Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// TopN returns the first n entries of scored, or all of them when fewer.
func TopN(scored []ScoredRecord, n int) []ScoredRecord {
	if n < len(scored) {
		return scored[:n]
	}
	return scored
}

// embedQuery embeds query and checks it against the store dimension.
func embedQuery(ctx context.Context, embedder reasoning.Embedder, query string, dimension int) ([]float32, error) {
	vec, err := reasoning.Embed(ctx, embedder, query)
	if err != nil {
		return nil, err
	}
	if len(vec) != dimension {
		return nil, errors.Mark(
			fmt.Errorf("query embedding has %d dimensions, store has %d", len(vec), dimension),
			errors.ErrDimensionMismatch,
		)
	}
	return vec, nil
}
