package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when a setting is absent.
const (
	DefaultStorageBackend = "file"
	DefaultStorageDir     = "./data"
	DefaultDedupThreshold = 0.95
	DefaultKeyWeight      = 0.3
	DefaultValueWeight    = 0.7
	DefaultWindowSize     = 5
	DefaultTopN           = 3
	DefaultRetrieval      = "linear"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultMockDimensions = 64
	DefaultCacheEntries   = 4096
)

// Default returns a configuration that runs fully offline with the mock
// reasoning engine and the file storage backend.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
			Dir:     DefaultStorageDir,
		},
		Memory: MemoryConfig{
			DedupThreshold: DefaultDedupThreshold,
			KeyWeight:      DefaultKeyWeight,
			ValueWeight:    DefaultValueWeight,
		},
		Conversation: ConversationConfig{WindowSize: DefaultWindowSize},
		Retrieval: RetrievalConfig{
			Strategy: DefaultRetrieval,
			TopN:     DefaultTopN,
		},
		Extraction: ExtractionConfig{
			Enabled:     true,
			Temperature: 0.0,
		},
		Reasoning: ReasoningConfig{Provider: "mock"},
		Embedding: EmbeddingConfig{
			Provider:   "mock",
			Dimensions: DefaultMockDimensions,
			Cache: CacheConfig{
				Enabled:    true,
				MaxEntries: DefaultCacheEntries,
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads the configuration at path, or the defaults when path is empty.
// Environment overrides and validation apply in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnvironmentOverrides(cfg)
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice. Settings missing from
// the document keep their Default values.
func LoadFromBytes(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(config)

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads environment variables from the given .env files, or from
// ./.env when none are given. Missing files are ignored; variables that are
// already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	// OpenAI API key override
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Reasoning.OpenAI.APIKey = apiKey
	}

	// Anthropic API key override
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Reasoning.Anthropic.APIKey = apiKey
	}

	if backend := os.Getenv("RECALL_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if dir := os.Getenv("RECALL_STORAGE_DIR"); dir != "" {
		config.Storage.Dir = dir
	}

	if level := os.Getenv("RECALL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// validateConfig validates the configuration and fills in defaults.
func validateConfig(config *Config) error {
	// Storage
	config.Storage.Backend = strings.ToLower(config.Storage.Backend)
	switch config.Storage.Backend {
	case "":
		config.Storage.Backend = DefaultStorageBackend
		fallthrough
	case "file":
		if config.Storage.Dir == "" {
			config.Storage.Dir = DefaultStorageDir
		}
	case "boltdb":
		if config.Storage.Path == "" {
			config.Storage.Path = "./data/recall.bolt.db"
		}
	case "sqlite":
		if config.Storage.Path == "" {
			config.Storage.Path = "./data/recall.db"
		}
	case "mock":
		// In-memory backend needs no location
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}

	// Memory
	if config.Memory.DedupThreshold == 0 {
		config.Memory.DedupThreshold = DefaultDedupThreshold
	}
	if config.Memory.DedupThreshold < -1 || config.Memory.DedupThreshold > 1 {
		return fmt.Errorf("dedup_threshold must be within [-1, 1], got %v", config.Memory.DedupThreshold)
	}
	if config.Memory.KeyWeight == 0 && config.Memory.ValueWeight == 0 {
		config.Memory.KeyWeight = DefaultKeyWeight
		config.Memory.ValueWeight = DefaultValueWeight
	}
	if config.Memory.KeyWeight < 0 || config.Memory.ValueWeight < 0 {
		return fmt.Errorf("composition weights must not be negative")
	}

	// Conversation
	if config.Conversation.WindowSize <= 0 {
		config.Conversation.WindowSize = DefaultWindowSize
	}

	// Retrieval
	if config.Retrieval.TopN <= 0 {
		config.Retrieval.TopN = DefaultTopN
	}
	config.Retrieval.Strategy = strings.ToLower(config.Retrieval.Strategy)
	switch config.Retrieval.Strategy {
	case "":
		config.Retrieval.Strategy = DefaultRetrieval
	case "linear", "chromem":
	default:
		return fmt.Errorf("unsupported retrieval strategy: %s", config.Retrieval.Strategy)
	}

	// Extraction temperature range
	if config.Extraction.Temperature < 0 || config.Extraction.Temperature > 1.0 {
		config.Extraction.Temperature = 0.0
	}

	// Reasoning
	config.Reasoning.Provider = strings.ToLower(config.Reasoning.Provider)
	switch config.Reasoning.Provider {
	case "", "mock":
		config.Reasoning.Provider = "mock"
	case "openai":
		// API key can be provided via environment variable, so it is checked at wiring time
		if config.Reasoning.OpenAI.Model == "" {
			config.Reasoning.OpenAI.Model = DefaultOpenAIModel
		}
	case "anthropic":
		if config.Reasoning.Anthropic.Model == "" {
			config.Reasoning.Anthropic.Model = DefaultAnthropicModel
		}
		if config.Reasoning.Anthropic.MaxTokens <= 0 {
			config.Reasoning.Anthropic.MaxTokens = 1024
		}
	default:
		return fmt.Errorf("unsupported reasoning provider: %s", config.Reasoning.Provider)
	}

	// Embedding
	config.Embedding.Provider = strings.ToLower(config.Embedding.Provider)
	switch config.Embedding.Provider {
	case "", "mock":
		config.Embedding.Provider = "mock"
		if config.Embedding.Dimensions <= 0 {
			config.Embedding.Dimensions = DefaultMockDimensions
		}
	case "openai":
		if config.Reasoning.OpenAI.EmbeddingModel == "" {
			config.Reasoning.OpenAI.EmbeddingModel = DefaultEmbeddingModel
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}
	if config.Embedding.Cache.MaxEntries <= 0 {
		config.Embedding.Cache.MaxEntries = DefaultCacheEntries
	}

	// Logging
	if config.Logging.Level == "" {
		config.Logging.Level = "warn"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	return nil
}
