package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytes_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RECALL_STORAGE_BACKEND", "")
	t.Setenv("RECALL_STORAGE_DIR", "")
	t.Setenv("RECALL_LOG_LEVEL", "")

	cfg, err := LoadFromBytes([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, DefaultStorageDir, cfg.Storage.Dir)
	assert.Equal(t, 0.95, cfg.Memory.DedupThreshold)
	assert.Equal(t, 0.3, cfg.Memory.KeyWeight)
	assert.Equal(t, 0.7, cfg.Memory.ValueWeight)
	assert.Equal(t, 5, cfg.Conversation.WindowSize)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
	assert.Equal(t, "linear", cfg.Retrieval.Strategy)
	assert.True(t, cfg.Extraction.Enabled)
	assert.Equal(t, "mock", cfg.Reasoning.Provider)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, DefaultMockDimensions, cfg.Embedding.Dimensions)
}

func TestLoadFromBytes_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("RECALL_STORAGE_BACKEND", "")
	t.Setenv("RECALL_STORAGE_DIR", "")
	t.Setenv("RECALL_LOG_LEVEL", "debug")

	yamlDoc := `
storage:
  backend: SQLite
memory:
  dedup_threshold: 0.9
conversation:
  window_size: 8
retrieval:
  strategy: chromem
  top_n: 5
extraction:
  enabled: false
  confirm: true
reasoning:
  provider: openai
embedding:
  provider: openai
`
	cfg, err := LoadFromBytes([]byte(yamlDoc))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "./data/recall.db", cfg.Storage.Path)
	assert.Equal(t, 0.9, cfg.Memory.DedupThreshold)
	assert.Equal(t, 8, cfg.Conversation.WindowSize)
	assert.Equal(t, "chromem", cfg.Retrieval.Strategy)
	assert.Equal(t, 5, cfg.Retrieval.TopN)
	assert.False(t, cfg.Extraction.Enabled)
	assert.True(t, cfg.Extraction.Confirm)
	assert.Equal(t, "sk-env", cfg.Reasoning.OpenAI.APIKey)
	assert.Equal(t, DefaultOpenAIModel, cfg.Reasoning.OpenAI.Model)
	assert.Equal(t, DefaultEmbeddingModel, cfg.Reasoning.OpenAI.EmbeddingModel)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "storage: [unclosed"},
		{"unknown backend", "storage:\n  backend: redis"},
		{"unknown strategy", "retrieval:\n  strategy: hnsw"},
		{"unknown provider", "reasoning:\n  provider: palm"},
		{"unknown embedder", "embedding:\n  provider: onnx"},
		{"threshold out of range", "memory:\n  dedup_threshold: 1.5"},
		{"negative weight", "memory:\n  key_weight: -0.3\n  value_weight: 0.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RECALL_STORAGE_BACKEND", "")
			_, err := LoadFromBytes([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("RECALL_STORAGE_BACKEND", "mock")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Storage.Backend)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conversation:\n  window_size: 2\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Conversation.WindowSize)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("RECALL_TEST_DOTENV=loaded\n"), 0o600))

	t.Setenv("RECALL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("RECALL_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(envPath, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("RECALL_TEST_DOTENV"))
}
