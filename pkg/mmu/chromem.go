package mmu

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/reasoning"
	"github.com/lexlapax/recall/pkg/vecmath"
	chromem "github.com/philippgille/chromem-go"
)

const chromemCollection = "memories"

// ChromemRetriever ranks memories through an in-memory chromem-go collection
// mirroring the store. The collection is rebuilt whenever the store revision
// changes.
type ChromemRetriever struct {
	store    *ltm.Store
	embedder reasoning.Embedder
	db       *chromem.DB

	mu         sync.Mutex
	collection *chromem.Collection
	indexed    bool
	revision   uint64

	// unindexed holds records chromem cannot normalize (zero vectors)
	unindexed []ltm.MemoryRecord
	byID      map[string]ltm.MemoryRecord
}

// NewChromemRetriever creates a retriever that indexes store into db.
func NewChromemRetriever(store *ltm.Store, embedder reasoning.Embedder, db *chromem.DB) *ChromemRetriever {
	return &ChromemRetriever{store: store, embedder: embedder, db: db}
}

// Retrieve implements Retriever.
func (r *ChromemRetriever) Retrieve(ctx context.Context, query string, topN int) ([]ScoredRecord, error) {
	if topN <= 0 {
		return []ScoredRecord{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, revision := r.store.Snapshot()
	if len(records) == 0 {
		return []ScoredRecord{}, nil
	}

	queryVec, err := embedQuery(ctx, r.embedder, query, len(records[0].Embedding))
	if err != nil {
		return nil, err
	}

	// A zero query has no direction; every score is 0 and store order decides
	if vecmath.Magnitude(queryVec) == 0 {
		return TopN(Rank(queryVec, records), topN), nil
	}

	if !r.indexed || r.revision != revision {
		if err := r.reindex(ctx, records); err != nil {
			return nil, err
		}
		r.revision = revision
		r.indexed = true
	}

	scored := make([]ScoredRecord, 0, len(records))
	if count := r.collection.Count(); count > 0 {
		// Querying the full collection lets ties at the cut-off be broken by id
		results, err := r.collection.QueryEmbedding(ctx, queryVec, count, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem query failed: %w", err)
		}
		for _, res := range results {
			rec, ok := r.byID[res.ID]
			if !ok {
				continue
			}
			scored = append(scored, ScoredRecord{Record: rec, Score: float64(res.Similarity)})
		}
	}
	for _, rec := range r.unindexed {
		scored = append(scored, ScoredRecord{Record: rec, Score: 0})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})

	return TopN(scored, topN), nil
}

// reindex replaces the collection with the given records.
func (r *ChromemRetriever) reindex(ctx context.Context, records []ltm.MemoryRecord) error {
	if r.collection != nil {
		if err := r.db.DeleteCollection(chromemCollection); err != nil {
			return fmt.Errorf("failed to drop chromem collection: %w", err)
		}
	}

	collection, err := r.db.CreateCollection(chromemCollection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("failed to create chromem collection: %w", err)
	}

	r.byID = make(map[string]ltm.MemoryRecord, len(records))
	r.unindexed = nil

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		if vecmath.Magnitude(rec.Embedding) == 0 {
			r.unindexed = append(r.unindexed, rec)
			continue
		}
		id := strconv.FormatInt(rec.ID, 10)
		r.byID[id] = rec
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  map[string]string{"key": rec.Key, "category": rec.Category},
		})
	}

	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to index memories: %w", err)
		}
	}

	r.collection = collection
	log.DebugContext(ctx, "Rebuilt chromem memory index", "documents", len(docs), "unindexed", len(r.unindexed))
	return nil
}

// precomputedOnly is the collection's embedding function. Every document and
// query carries its own vector, so it is never expected to run.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem collection requires precomputed embeddings")
}
