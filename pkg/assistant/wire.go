package assistant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexlapax/recall/pkg/config"
	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/extraction"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/mem/stm"
	"github.com/lexlapax/recall/pkg/mmu"
	"github.com/lexlapax/recall/pkg/persist"
	"github.com/lexlapax/recall/pkg/persist/adapters/boltdb"
	"github.com/lexlapax/recall/pkg/persist/adapters/file"
	persistmock "github.com/lexlapax/recall/pkg/persist/adapters/mock"
	"github.com/lexlapax/recall/pkg/persist/adapters/sqlite"
	"github.com/lexlapax/recall/pkg/reasoning"
	reasoningAnthropic "github.com/lexlapax/recall/pkg/reasoning/adapters/anthropic"
	reasoningMock "github.com/lexlapax/recall/pkg/reasoning/adapters/mock"
	reasoningOpenAI "github.com/lexlapax/recall/pkg/reasoning/adapters/openai"
	"github.com/lexlapax/recall/pkg/reasoning/cache"
	"github.com/lexlapax/recall/pkg/scripting"
	chromem "github.com/philippgille/chromem-go"
)

// offlineReply is the mock engine's answer to anything it has no canned
// response for.
const offlineReply = "I'm running with the offline mock engine, so I can't really answer that. Configure an OpenAI or Anthropic provider for real replies."

// Option customizes NewFromConfig.
type Option func(*wiring)

type wiring struct {
	backend   persist.Backend
	completer reasoning.Completer
	embedder  reasoning.Embedder
	confirmer extraction.Confirmer
}

// WithBackend uses b instead of the configured storage backend. The
// assistant takes ownership and closes it.
func WithBackend(b persist.Backend) Option {
	return func(w *wiring) { w.backend = b }
}

// WithCompleter uses c instead of the configured reasoning provider.
func WithCompleter(c reasoning.Completer) Option {
	return func(w *wiring) { w.completer = c }
}

// WithEmbedder uses e instead of the configured embedding provider. The
// embedding cache still applies when enabled.
func WithEmbedder(e reasoning.Embedder) Option {
	return func(w *wiring) { w.embedder = e }
}

// WithConfirmer sets the confirmer used when extraction.confirm is on.
func WithConfirmer(c extraction.Confirmer) Option {
	return func(w *wiring) { w.confirmer = c }
}

// NewFromConfig creates an Assistant with every component built from cfg,
// and loads the persisted memories and conversation.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Assistant, error) {
	w := &wiring{}
	for _, opt := range opts {
		opt(w)
	}

	var closers []func() error
	fail := func(err error) (*Assistant, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	backend := w.backend
	if backend == nil {
		b, err := initBackend(ctx, cfg.Storage)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize storage backend: %w", err))
		}
		backend = b
	}
	closers = append(closers, backend.Close)

	completer := w.completer
	if completer == nil {
		c, err := initCompleter(cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize reasoning engine: %w", err))
		}
		completer = c
	}

	embedder := w.embedder
	if embedder == nil {
		e, err := initEmbedder(cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize embedder: %w", err))
		}
		embedder = e
	}
	if cfg.Embedding.Cache.Enabled {
		cached, err := cache.NewCachedEmbedder(embedder, embeddingNamespace(cfg), cfg.Embedding.Cache.MaxEntries)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { cached.Close(); return nil })
		embedder = cached
	}

	scriptEngine, err := initScriptEngine(cfg.Scripting)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize scripting engine: %w", err))
	}
	if scriptEngine != nil {
		closers = append(closers, scriptEngine.Close)
	}

	threshold := cfg.Memory.DedupThreshold
	store := ltm.NewStore(backend, ltm.Options{DedupThreshold: &threshold})
	if err := store.Load(ctx); err != nil {
		return fail(fmt.Errorf("failed to load memories: %w", err))
	}

	window := stm.NewWindow(backend, cfg.Conversation.WindowSize)
	if err := window.Load(ctx); err != nil {
		return fail(fmt.Errorf("failed to load conversation: %w", err))
	}

	mmuConfig := mmu.DefaultConfig()
	mmuConfig.KeyWeight = float32(cfg.Memory.KeyWeight)
	mmuConfig.ValueWeight = float32(cfg.Memory.ValueWeight)
	mmuConfig.DefaultStrategy = cfg.Retrieval.Strategy
	mmuConfig.EnableLuaHooks = scriptEngine != nil

	var scripts scripting.Engine
	if scriptEngine != nil {
		scripts = scriptEngine
	}
	memory := mmu.NewMMU(store, embedder, scripts, mmuConfig)
	if cfg.Retrieval.Strategy == mmu.StrategyChromem {
		memory.RegisterRetriever(mmu.StrategyChromem, mmu.NewChromemRetriever(store, embedder, chromem.NewDB()))
	}

	var pipeline *extraction.Pipeline
	if cfg.Extraction.Enabled {
		extractionConfig := extraction.DefaultConfig()
		extractionConfig.Temperature = cfg.Extraction.Temperature

		var confirmer extraction.Confirmer
		if cfg.Extraction.Confirm {
			confirmer = w.confirmer
			if confirmer == nil {
				log.Warn("Extraction confirmation requested but no confirmer available; facts are stored without asking")
			}
		}
		pipeline = extraction.NewPipeline(completer, memory, confirmer, extractionConfig)
	}

	a := New(memory, window, completer, pipeline, Config{
		TopN:     cfg.Retrieval.TopN,
		Strategy: cfg.Retrieval.Strategy,
	})
	a.closers = closers

	log.Info("Assistant initialized from config",
		"storage_backend", cfg.Storage.Backend,
		"reasoning_provider", cfg.Reasoning.Provider,
		"embedding_provider", cfg.Embedding.Provider,
		"retrieval_strategy", cfg.Retrieval.Strategy,
		"memories", store.Len(),
		"turns", window.Len(),
	)
	return a, nil
}

// initBackend opens the configured persistence backend.
func initBackend(ctx context.Context, cfg config.StorageConfig) (persist.Backend, error) {
	log.Info("Initializing storage backend", "backend", cfg.Backend)

	switch cfg.Backend {
	case "file", "":
		return file.NewFileBackend(cfg.Dir), nil

	case "boltdb":
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
		return boltdb.Open(ctx, cfg.Path)

	case "sqlite":
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
		return sqlite.Open(ctx, cfg.Path)

	case "mock":
		log.Info("Using in-memory storage; nothing survives a restart")
		return persistmock.NewMockBackend(), nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

// initCompleter builds the configured reasoning provider. A missing API key
// falls back to the mock engine with a warning.
func initCompleter(cfg *config.Config) (reasoning.Completer, error) {
	switch cfg.Reasoning.Provider {
	case "openai":
		adapter, err := reasoningOpenAI.NewOpenAIAdapter(openAIConfig(cfg))
		if errors.Is(err, reasoningOpenAI.ErrEmptyAPIKey) {
			log.Warn("OpenAI API key not found, falling back to mock engine")
			return newOfflineEngine(cfg), nil
		}
		if err != nil {
			return nil, err
		}
		log.Info("Using OpenAI reasoning engine", "chat_model", cfg.Reasoning.OpenAI.Model,
			log.Secret("api_key", cfg.Reasoning.OpenAI.APIKey))
		return adapter, nil

	case "anthropic":
		adapter, err := reasoningAnthropic.NewAnthropicAdapter(reasoningAnthropic.Config{
			APIKey:    cfg.Reasoning.Anthropic.APIKey,
			Model:     cfg.Reasoning.Anthropic.Model,
			BaseURL:   cfg.Reasoning.Anthropic.BaseURL,
			MaxTokens: cfg.Reasoning.Anthropic.MaxTokens,
		})
		if errors.Is(err, reasoningAnthropic.ErrEmptyAPIKey) {
			log.Warn("Anthropic API key not found, falling back to mock engine")
			return newOfflineEngine(cfg), nil
		}
		if err != nil {
			return nil, err
		}
		log.Info("Using Anthropic reasoning engine", "model", cfg.Reasoning.Anthropic.Model,
			log.Secret("api_key", cfg.Reasoning.Anthropic.APIKey))
		return adapter, nil

	case "mock", "":
		log.Info("Using mock reasoning engine")
		return newOfflineEngine(cfg), nil

	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", cfg.Reasoning.Provider)
	}
}

// initEmbedder builds the configured embedding provider.
func initEmbedder(cfg *config.Config) (reasoning.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		adapter, err := reasoningOpenAI.NewOpenAIAdapter(openAIConfig(cfg))
		if err != nil {
			// Stored vectors from one model are meaningless to another, so
			// there is no silent fallback here
			return nil, fmt.Errorf("OpenAI embeddings unavailable: %w", err)
		}
		log.Info("Using OpenAI embeddings", "model", cfg.Reasoning.OpenAI.EmbeddingModel)
		return adapter, nil

	case "mock", "":
		log.Info("Using deterministic mock embeddings", "dimensions", cfg.Embedding.Dimensions)
		return reasoningMock.NewMockEngine(reasoningMock.WithDimensions(cfg.Embedding.Dimensions)), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func openAIConfig(cfg *config.Config) reasoningOpenAI.Config {
	return reasoningOpenAI.Config{
		APIKey:         cfg.Reasoning.OpenAI.APIKey,
		BaseURL:        cfg.Reasoning.OpenAI.BaseURL,
		ChatModel:      cfg.Reasoning.OpenAI.Model,
		EmbeddingModel: cfg.Reasoning.OpenAI.EmbeddingModel,
		MaxTokens:      cfg.Reasoning.OpenAI.MaxTokens,
		Temperature:    cfg.Reasoning.OpenAI.Temperature,
	}
}

// newOfflineEngine returns a mock engine that answers extraction prompts
// with an empty array and everything else with a fixed reply.
func newOfflineEngine(cfg *config.Config) *reasoningMock.MockEngine {
	engine := reasoningMock.NewMockEngine(
		reasoningMock.WithDimensions(cfg.Embedding.Dimensions),
		reasoningMock.WithDefaultResponse(offlineReply),
	)
	engine.AddResponse(extraction.Instruction, "[]")
	return engine
}

func embeddingNamespace(cfg *config.Config) string {
	if cfg.Embedding.Provider == "openai" {
		return "openai/" + cfg.Reasoning.OpenAI.EmbeddingModel
	}
	return fmt.Sprintf("mock/%d", cfg.Embedding.Dimensions)
}

// initScriptEngine loads every script directory that exists. It returns nil
// when no directory is configured.
func initScriptEngine(cfg config.ScriptingConfig) (*scripting.LuaEngine, error) {
	if len(cfg.Paths) == 0 {
		return nil, nil
	}

	engine, err := scripting.NewLuaEngine(scripting.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Lua engine: %w", err)
	}

	loaded := 0
	for _, dir := range cfg.Paths {
		abs, err := filepath.Abs(dir)
		if err != nil {
			log.Warn("Failed to get absolute path", "path", dir, "error", err)
			continue
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			log.Debug("Scripts directory not found", "path", abs)
			continue
		}
		if err := engine.LoadScriptDir(abs); err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to load scripts from %s: %w", abs, err)
		}
		log.Info("Loaded scripts", "path", abs)
		loaded++
	}

	if loaded == 0 {
		log.Warn("No scripts were loaded from any path", "paths", cfg.Paths)
	}
	return engine, nil
}
