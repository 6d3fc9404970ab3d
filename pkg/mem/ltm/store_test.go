package ltm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/persist"
	"github.com/lexlapax/recall/pkg/persist/adapters/file"
	"github.com/lexlapax/recall/pkg/persist/adapters/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *mock.MockBackend) {
	t.Helper()
	backend := mock.NewMockBackend()
	store := NewStore(backend, Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, store.Load(context.Background()))
	return store, backend
}

func TestStore_LoadMissingSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.Dimension())
	assert.Empty(t, store.List(""))
}

func TestStore_InsertAssignsSequentialIDs(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	first, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "blue", Category: "preferences"}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, int64(1), first.Record.ID)
	assert.Equal(t, "favorite_color: blue", first.Record.Text)
	assert.Equal(t, fixedNow, first.Record.CreatedAt)

	second, err := store.Insert(ctx, Fact{Key: "home_city", Value: "Lisbon"}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Record.ID)

	assert.Equal(t, 3, store.Dimension())
	assert.Equal(t, 2, backend.WriteCount(persist.MemoriesSnapshot))
}

func TestStore_DuplicateIsSkipped(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "blue"}, []float32{1, 0, 0})
	require.NoError(t, err)

	result, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "blue"}, []float32{0.99, 0.01, 0})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	require.NotNil(t, result.Duplicate)
	assert.Equal(t, int64(1), result.Duplicate.ID)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, backend.WriteCount(persist.MemoriesSnapshot), "skips must not persist")
}

func TestStore_SameKeyDifferentValueIsKept(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "blue"}, []float32{1, 0, 0})
	require.NoError(t, err)

	result, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "green"}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, store.Len())
}

func TestStore_DifferentKeySameVectorIsKept(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "blue"}, []float32{1, 0, 0})
	require.NoError(t, err)

	// Key equality gates the similarity check
	result, err := store.Insert(ctx, Fact{Key: "car_color", Value: "blue"}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, store.Len())
}

func TestStore_CustomThreshold(t *testing.T) {
	threshold := 0.5
	store := NewStore(mock.NewMockBackend(), Options{DedupThreshold: &threshold})
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "k", Value: "a"}, []float32{1, 0})
	require.NoError(t, err)

	// cos = 0.707 >= 0.5
	result, err := store.Insert(ctx, Fact{Key: "k", Value: "b"}, []float32{1, 1})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0.5, store.Threshold())
}

func TestStore_InsertValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: " ", Value: "x"}, []float32{1})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = store.Insert(ctx, Fact{Key: "k", Value: "v"}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = store.Insert(ctx, Fact{Key: "k", Value: "v"}, []float32{1, 0})
	require.NoError(t, err)

	_, err = store.Insert(ctx, Fact{Key: "other", Value: "v"}, []float32{1, 0, 0})
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
	assert.Equal(t, 1, store.Len())
}

func TestStore_InsertRollsBackOnPersistenceFailure(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "a", Value: "1"}, []float32{1, 0})
	require.NoError(t, err)
	revision := store.Revision()

	backend.SetWriteFailure(true)
	_, err = store.Insert(ctx, Fact{Key: "b", Value: "2"}, []float32{0, 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, revision, store.Revision())

	// The failed insert did not consume an id
	backend.SetWriteFailure(false)
	result, err := store.Insert(ctx, Fact{Key: "b", Value: "2"}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Record.ID)
}

func TestStore_DeleteByID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		_, err := store.Insert(ctx, Fact{Key: key, Value: "v"}, []float32{float32(i + 1), 1})
		require.NoError(t, err)
	}

	removed, ok, err := store.DeleteByID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", removed.Key)

	_, ok, err = store.DeleteByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	keys := []string{}
	for _, r := range store.List("") {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"a", "c"}, keys)
}

func TestStore_IDsNotReusedAfterDeletingHighest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "a", Value: "1"}, []float32{1, 0})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Fact{Key: "b", Value: "2"}, []float32{0, 1})
	require.NoError(t, err)

	_, ok, err := store.DeleteByID(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := store.Insert(ctx, Fact{Key: "c", Value: "3"}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Record.ID)
}

func TestStore_DeleteRollsBackOnPersistenceFailure(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "a", Value: "1"}, []float32{1, 0})
	require.NoError(t, err)

	backend.SetWriteFailure(true)
	_, ok, err := store.DeleteByID(ctx, 1)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestStore_ListAndCategorySummary(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	facts := []Fact{
		{Key: "favorite_color", Value: "blue", Category: "preferences"},
		{Key: "dog_name", Value: "Rex", Category: "pets"},
		{Key: "favorite_food", Value: "ramen", Category: "preferences"},
		{Key: "misc", Value: "thing"},
	}
	for i, f := range facts {
		vec := make([]float32, 4)
		vec[i] = 1
		_, err := store.Insert(ctx, f, vec)
		require.NoError(t, err)
	}

	prefs := store.List("preferences")
	require.Len(t, prefs, 2)
	assert.Equal(t, "favorite_color", prefs[0].Key)
	assert.Equal(t, "favorite_food", prefs[1].Key)

	assert.Empty(t, store.List("unknown"))
	assert.Len(t, store.List(""), 4)

	assert.Equal(t, map[string]int{"preferences": 2, "pets": 1}, store.CategorySummary())
}

func TestStore_Clear(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Fact{Key: "a", Value: "1"}, []float32{1, 0})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())
	assert.JSONEq(t, "[]", string(backend.Snapshot(persist.MemoriesSnapshot)))

	// Ids keep increasing after a clear
	result, err := store.Insert(ctx, Fact{Key: "b", Value: "2"}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Record.ID)
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	result, err := store.Insert(ctx, Fact{Key: "a", Value: "1"}, []float32{1, 0})
	require.NoError(t, err)
	result.Record.Embedding[0] = 99

	listed := store.List("")
	listed[0].Embedding[1] = 42

	got, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
}

func TestStore_RoundTripThroughFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := NewStore(file.NewFileBackend(dir), Options{})
	require.NoError(t, store.Load(ctx))

	embedding := []float32{0.1, 0.7000001, -0.33333334, 1e-7}
	_, err := store.Insert(ctx, Fact{Key: "favorite_color", Value: "blue", Category: "preferences"}, embedding)
	require.NoError(t, err)
	_, err = store.Insert(ctx, Fact{Key: "home_city", Value: "Lisbon"}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	reloaded := NewStore(file.NewFileBackend(dir), Options{})
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, store.List(""), reloaded.List(""))
	assert.Equal(t, 4, reloaded.Dimension())

	// Embeddings survive the JSON encoding bit for bit
	got, ok := reloaded.Get(1)
	require.True(t, ok)
	assert.Equal(t, embedding, got.Embedding)

	// Next id continues after the highest loaded id
	result, err := reloaded.Insert(ctx, Fact{Key: "pet", Value: "cat"}, []float32{0, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Record.ID)
}

func TestStore_LoadRejectsMixedDimensions(t *testing.T) {
	backend := mock.NewMockBackend()
	records := []MemoryRecord{
		{ID: 1, Key: "a", Value: "1", Text: "a: 1", Embedding: []float32{1, 0}},
		{ID: 2, Key: "b", Value: "2", Text: "b: 2", Embedding: []float32{1, 0, 0}},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	backend.Seed(persist.MemoriesSnapshot, data)

	store := NewStore(backend, Options{})
	err = store.Load(context.Background())
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestStore_LoadRejectsDuplicateIDs(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.Seed(persist.MemoriesSnapshot, []byte(`[
		{"id": 1, "key": "a", "value": "1", "text": "a: 1", "embedding": [1]},
		{"id": 1, "key": "b", "value": "2", "text": "b: 2", "embedding": [0]}
	]`))

	store := NewStore(backend, Options{})
	err := store.Load(context.Background())
	assert.True(t, errors.Is(err, errors.ErrPersistence))
}
