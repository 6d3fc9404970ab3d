package persist_test

import (
	"context"
	"testing"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/persist"
	"github.com/lexlapax/recall/pkg/persist/adapters/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string    `json:"name"`
	Score []float32 `json:"score"`
}

func TestLoadJSON_Missing(t *testing.T) {
	backend := mock.NewMockBackend()

	var out []sample
	found, err := persist.LoadJSON(context.Background(), backend, persist.MemoriesSnapshot, &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, out)
}

func TestSaveAndLoadJSON(t *testing.T) {
	backend := mock.NewMockBackend()
	ctx := context.Background()

	in := []sample{{Name: "a", Score: []float32{0.1, 0.2, 0.3}}}
	require.NoError(t, persist.SaveJSON(ctx, backend, persist.MemoriesSnapshot, in))
	assert.Equal(t, 1, backend.WriteCount(persist.MemoriesSnapshot))

	var out []sample
	found, err := persist.LoadJSON(ctx, backend, persist.MemoriesSnapshot, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestLoadJSON_Corrupt(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.Seed(persist.ConversationSnapshot, []byte("{not json"))

	var out []sample
	_, err := persist.LoadJSON(context.Background(), backend, persist.ConversationSnapshot, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))
}

func TestSaveJSON_WriteFailure(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.SetWriteFailure(true)

	err := persist.SaveJSON(context.Background(), backend, persist.MemoriesSnapshot, []sample{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))
	assert.True(t, errors.Is(err, mock.ErrInjectedWrite))
	assert.Equal(t, 0, backend.WriteCount(persist.MemoriesSnapshot))
}
