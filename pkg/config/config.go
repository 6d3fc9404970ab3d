// Package config loads the assistant configuration from YAML, with API keys
// and a few overrides taken from the environment.
package config

// Config represents the top-level configuration for the recall assistant.
type Config struct {
	// Storage configures where memories and conversation history are persisted
	Storage StorageConfig `yaml:"storage"`

	// Memory configures the long-term fact store
	Memory MemoryConfig `yaml:"memory"`

	// Conversation configures the short-term conversation window
	Conversation ConversationConfig `yaml:"conversation"`

	// Retrieval configures how memories are ranked for a query
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Extraction configures automatic fact extraction after each reply
	Extraction ExtractionConfig `yaml:"extraction"`

	// Reasoning configures the completer (LLM)
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Embedding configures the embedder
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Scripting configures the Lua hook engine
	Scripting ScriptingConfig `yaml:"scripting"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "file", "boltdb", "sqlite", "mock"
	Backend string `yaml:"backend"`

	// Dir is the directory holding the snapshot files (file backend)
	Dir string `yaml:"dir"`

	// Path is the database file (boltdb and sqlite backends)
	Path string `yaml:"path"`
}

// MemoryConfig configures the long-term fact store.
type MemoryConfig struct {
	// DedupThreshold is the cosine similarity at or above which a same-key fact is a duplicate
	DedupThreshold float64 `yaml:"dedup_threshold"`

	// KeyWeight is the weight of the key embedding in the composed fact vector
	KeyWeight float64 `yaml:"key_weight"`

	// ValueWeight is the weight of the value embedding in the composed fact vector
	ValueWeight float64 `yaml:"value_weight"`
}

// ConversationConfig configures the conversation window.
type ConversationConfig struct {
	// WindowSize is the maximum number of turns kept and replayed into prompts
	WindowSize int `yaml:"window_size"`
}

// RetrievalConfig configures memory ranking.
type RetrievalConfig struct {
	// Strategy is "linear" (exhaustive scan) or "chromem"
	Strategy string `yaml:"strategy"`

	// TopN is the number of memories injected into each prompt
	TopN int `yaml:"top_n"`
}

// ExtractionConfig configures fact extraction.
type ExtractionConfig struct {
	// Enabled turns automatic extraction on or off
	Enabled bool `yaml:"enabled"`

	// Confirm asks the user before storing each extracted fact
	Confirm bool `yaml:"confirm"`

	// Temperature is used for the extraction completion
	Temperature float64 `yaml:"temperature"`
}

// ReasoningConfig selects the completer. Provider is "openai", "anthropic" or
// "mock". A provider without an API key falls back to the offline mock.
type ReasoningConfig struct {
	Provider  string          `yaml:"provider"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig also serves the openai embedding provider. BaseURL points the
// client at a proxy or any compatible server.
type OpenAIConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedder.
type EmbeddingConfig struct {
	// Provider is "openai" or "mock"
	Provider string `yaml:"provider"`

	// Dimensions is the vector size produced by the mock embedder
	Dimensions int `yaml:"dimensions"`

	// Cache configures the in-process embedding cache
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Enabled turns the cache on
	Enabled bool `yaml:"enabled"`

	// MaxEntries bounds the number of cached vectors
	MaxEntries int64 `yaml:"max_entries"`
}

// ScriptingConfig configures the Lua scripting engine.
type ScriptingConfig struct {
	// Paths is a list of directories containing Lua scripts
	Paths []string `yaml:"paths"`
}

// LoggingConfig mirrors log.Config with plain strings for YAML.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
