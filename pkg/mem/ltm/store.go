package ltm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/persist"
	"github.com/lexlapax/recall/pkg/vecmath"
)

// DefaultDedupThreshold is the cosine similarity at or above which a fact with
// the same key counts as already known.
const DefaultDedupThreshold = 0.95

// Options configures a Store.
type Options struct {
	// DedupThreshold overrides DefaultDedupThreshold when non-nil
	DedupThreshold *float64

	// Now overrides the clock used for CreatedAt
	Now func() time.Time
}

// Store is the in-memory fact collection mirrored to a persistence backend.
// Every mutation rewrites the whole snapshot before it returns.
type Store struct {
	backend   persist.Backend
	threshold float64
	now       func() time.Time

	mu        sync.RWMutex
	records   []MemoryRecord
	nextID    int64
	dimension int
	revision  uint64
}

// NewStore creates an empty store backed by backend. Call Load to read the
// existing snapshot.
func NewStore(backend persist.Backend, opts Options) *Store {
	s := &Store{
		backend:   backend,
		threshold: DefaultDedupThreshold,
		now:       time.Now,
		nextID:    1,
	}
	if opts.DedupThreshold != nil {
		s.threshold = *opts.DedupThreshold
	}
	if opts.Now != nil {
		s.now = opts.Now
	}
	return s
}

// Threshold returns the dedup similarity threshold in effect.
func (s *Store) Threshold() float64 {
	return s.threshold
}

// Load replaces the in-memory collection with the persisted snapshot. A
// missing snapshot yields an empty store.
func (s *Store) Load(ctx context.Context) error {
	var records []MemoryRecord
	found, err := persist.LoadJSON(ctx, s.backend, persist.MemoriesSnapshot, &records)
	if err != nil {
		return err
	}

	dimension := 0
	var maxID int64
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			return errors.Mark(fmt.Errorf("duplicate memory id %d in snapshot", r.ID), errors.ErrPersistence)
		}
		seen[r.ID] = struct{}{}

		if dimension == 0 {
			dimension = len(r.Embedding)
		} else if len(r.Embedding) != dimension {
			return errors.Mark(
				fmt.Errorf("memory %d has %d dimensions, expected %d", r.ID, len(r.Embedding), dimension),
				errors.ErrDimensionMismatch,
			)
		}
		if r.ID > maxID {
			maxID = r.ID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	s.dimension = dimension
	s.nextID = maxID + 1
	s.revision++

	log.DebugContext(ctx, "Loaded memory snapshot", "found", found, "records", len(records), "dimension", dimension)
	return nil
}

// Insert stores fact with the given embedding unless a record with the same
// key and a similar enough embedding already exists.
func (s *Store) Insert(ctx context.Context, fact Fact, embedding []float32) (InsertResult, error) {
	fact = fact.Normalize()
	if fact.Key == "" || fact.Value == "" {
		return InsertResult{}, errors.Mark(fmt.Errorf("fact needs both a key and a value"), errors.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return InsertResult{}, errors.Mark(fmt.Errorf("fact %q has an empty embedding", fact.Key), errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && len(embedding) != s.dimension {
		return InsertResult{}, errors.Mark(
			fmt.Errorf("embedding has %d dimensions, store has %d", len(embedding), s.dimension),
			errors.ErrDimensionMismatch,
		)
	}

	if existing, ok := s.findDuplicateLocked(fact.Key, embedding); ok {
		log.DebugContext(ctx, "Skipping duplicate fact", "key", fact.Key, "existing_id", existing.ID)
		dup := existing.clone()
		return InsertResult{Skipped: true, Duplicate: &dup}, nil
	}

	record := MemoryRecord{
		ID:        s.nextID,
		Key:       fact.Key,
		Value:     fact.Value,
		Text:      fact.Text(),
		Category:  fact.Category,
		CreatedAt: s.now().UTC(),
		Embedding: append([]float32(nil), embedding...),
	}

	previous := s.records
	previousDimension := s.dimension

	// Appending to a fresh slice keeps previous intact for rollback
	next := make([]MemoryRecord, len(previous), len(previous)+1)
	copy(next, previous)
	s.records = append(next, record)
	if s.dimension == 0 {
		s.dimension = len(embedding)
	}

	if err := s.persistLocked(ctx); err != nil {
		s.records = previous
		s.dimension = previousDimension
		log.ErrorContext(ctx, "Failed to persist memory, insert rolled back", "key", fact.Key, "error", err)
		return InsertResult{}, err
	}

	s.nextID++
	s.revision++
	log.DebugContext(ctx, "Stored memory", "id", record.ID, "key", record.Key, "category", record.Category)
	return InsertResult{Record: record.clone()}, nil
}

// findDuplicateLocked looks for an existing record with the same key whose
// embedding is at least threshold-similar to embedding.
func (s *Store) findDuplicateLocked(key string, embedding []float32) (MemoryRecord, bool) {
	for _, r := range s.records {
		if r.Key != key {
			continue
		}
		if vecmath.CosineSimilarity(r.Embedding, embedding) >= s.threshold {
			return r, true
		}
	}
	return MemoryRecord{}, false
}

// DeleteByID removes the record with the given id. ok is false when no such
// record exists.
func (s *Store) DeleteByID(ctx context.Context, id int64) (MemoryRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return MemoryRecord{}, false, nil
	}

	previous := s.records
	removed := previous[idx]

	next := make([]MemoryRecord, 0, len(previous)-1)
	next = append(next, previous[:idx]...)
	next = append(next, previous[idx+1:]...)
	s.records = next

	if err := s.persistLocked(ctx); err != nil {
		s.records = previous
		log.ErrorContext(ctx, "Failed to persist memory deletion, rolled back", "id", id, "error", err)
		return MemoryRecord{}, false, err
	}

	s.revision++
	log.DebugContext(ctx, "Deleted memory", "id", id, "key", removed.Key)
	return removed.clone(), true, nil
}

// Clear removes every record. The id counter is not reset.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.records
	s.records = nil

	if err := s.persistLocked(ctx); err != nil {
		s.records = previous
		return err
	}

	// The dimension is fixed again by the next insert
	s.dimension = 0
	s.revision++
	log.DebugContext(ctx, "Cleared memories", "removed", len(previous))
	return nil
}

// List returns records in insertion order. A non-empty category restricts the
// result to that category.
func (s *Store) List(category string) []MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MemoryRecord, 0, len(s.records))
	for _, r := range s.records {
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, r.clone())
	}
	return out
}

// Snapshot returns every record together with the revision they belong to.
func (s *Store) Snapshot() ([]MemoryRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MemoryRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out, s.revision
}

// Get returns the record with the given id.
func (s *Store) Get(id int64) (MemoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return MemoryRecord{}, false
}

// CategorySummary counts records per category, leaving out uncategorized ones.
func (s *Store) CategorySummary() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := make(map[string]int)
	for _, r := range s.records {
		if r.Category != "" {
			summary[r.Category]++
		}
	}
	return summary
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension returns the embedding dimension, or 0 while the store is empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Revision changes every time the collection changes.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Store) persistLocked(ctx context.Context) error {
	records := s.records
	if records == nil {
		records = []MemoryRecord{}
	}
	return persist.SaveJSON(ctx, s.backend, persist.MemoriesSnapshot, records)
}
