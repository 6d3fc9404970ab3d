// Package mmu is the memory management unit: it turns facts into embedded
// memory records on the way in and ranks records against queries on the way
// out.
package mmu

import (
	"context"
	"errors"
	"fmt"

	recallerrors "github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/reasoning"
	"github.com/lexlapax/recall/pkg/scripting"
	"github.com/lexlapax/recall/pkg/vecmath"
)

// ErrFiltered is returned by EncodeToLTM when the before_encode hook drops a
// fact.
var ErrFiltered = errors.New("fact filtered by before_encode hook")

// Retrieval strategies.
const (
	StrategyLinear  = "linear"
	StrategyChromem = "chromem"
)

// RetrievalOptions configures the behavior of memory retrieval.
type RetrievalOptions struct {
	// MaxResults limits the number of records returned
	MaxResults int

	// Strategy selects a registered retriever; empty uses the default
	Strategy string
}

// DefaultRetrievalOptions returns the default options for memory retrieval.
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		MaxResults: 3,
		Strategy:   StrategyLinear,
	}
}

// Config contains configuration options for the MMU.
type Config struct {
	// EnableLuaHooks determines whether to call Lua hooks during operations
	EnableLuaHooks bool

	// KeyWeight and ValueWeight compose the fact embedding
	KeyWeight   float32
	ValueWeight float32

	// DefaultStrategy is used when RetrievalOptions.Strategy is empty
	DefaultStrategy string
}

// DefaultConfig returns the default configuration for the MMU.
func DefaultConfig() Config {
	return Config{
		EnableLuaHooks:  true,
		KeyWeight:       0.3,
		ValueWeight:     0.7,
		DefaultStrategy: StrategyLinear,
	}
}

// MMU encodes facts into the long-term store and retrieves them.
type MMU struct {
	store        *ltm.Store
	embedder     reasoning.Embedder
	scriptEngine scripting.Engine
	config       Config
	retrievers   map[string]Retriever
}

// NewMMU creates an MMU. scriptEngine may be nil. A linear retriever is
// always registered.
func NewMMU(store *ltm.Store, embedder reasoning.Embedder, scriptEngine scripting.Engine, config Config) *MMU {
	if config.DefaultStrategy == "" {
		config.DefaultStrategy = StrategyLinear
	}

	m := &MMU{
		store:        store,
		embedder:     embedder,
		scriptEngine: scriptEngine,
		config:       config,
		retrievers: map[string]Retriever{
			StrategyLinear: NewLinearRetriever(store, embedder),
		},
	}

	log.Debug("Memory Management Unit (MMU) initialized",
		"lua_hooks_enabled", config.EnableLuaHooks && scriptEngine != nil,
		"key_weight", config.KeyWeight,
		"value_weight", config.ValueWeight,
		"default_strategy", config.DefaultStrategy,
	)
	return m
}

// RegisterRetriever makes r available under strategy.
func (m *MMU) RegisterRetriever(strategy string, r Retriever) {
	m.retrievers[strategy] = r
}

// Store returns the underlying long-term store.
func (m *MMU) Store() *ltm.Store {
	return m.store
}

// EncodeToLTM embeds fact and inserts it into the store. The key and value
// are embedded in one call and blended with the configured weights. A
// duplicate is reported through InsertResult.Skipped, not as an error.
func (m *MMU) EncodeToLTM(ctx context.Context, fact ltm.Fact) (ltm.InsertResult, error) {
	fact = fact.Normalize()

	if m.hooksEnabled() {
		var keep bool
		fact, keep = callBeforeEncodeHook(ctx, m.scriptEngine, fact)
		if !keep {
			log.DebugContext(ctx, "Fact dropped by before_encode hook", "key", fact.Key)
			return ltm.InsertResult{}, ErrFiltered
		}
		fact = fact.Normalize()
	}

	if fact.Key == "" || fact.Value == "" {
		return ltm.InsertResult{}, recallerrors.Mark(fmt.Errorf("fact needs both a key and a value"), recallerrors.ErrInvalidInput)
	}

	vectors, err := reasoning.EmbedAll(ctx, m.embedder, []string{fact.Key, fact.Value})
	if err != nil {
		log.ErrorContext(ctx, "Failed to embed fact", "key", fact.Key, "error", err)
		return ltm.InsertResult{}, err
	}

	embedding := vecmath.WeightedAverage(vectors[0], vectors[1], m.config.KeyWeight, m.config.ValueWeight)

	result, err := m.store.Insert(ctx, fact, embedding)
	if err != nil {
		return ltm.InsertResult{}, err
	}

	if !result.Skipped && m.hooksEnabled() {
		callAfterEncodeHook(ctx, m.scriptEngine, result.Record)
	}
	return result, nil
}

// RetrieveFromLTM ranks memories against query using the selected strategy.
func (m *MMU) RetrieveFromLTM(ctx context.Context, query string, options RetrievalOptions) ([]ScoredRecord, error) {
	strategy := options.Strategy
	if strategy == "" {
		strategy = m.config.DefaultStrategy
	}

	retriever, ok := m.retrievers[strategy]
	if !ok {
		return nil, recallerrors.Mark(fmt.Errorf("unknown retrieval strategy %q", strategy), recallerrors.ErrInvalidInput)
	}

	results, err := retriever.Retrieve(ctx, query, options.MaxResults)
	if err != nil {
		log.ErrorContext(ctx, "Memory retrieval failed", "strategy", strategy, "error", err)
		return nil, err
	}

	log.DebugContext(ctx, "Retrieved memories", "strategy", strategy, "count", len(results))
	return results, nil
}

func (m *MMU) hooksEnabled() bool {
	return m.config.EnableLuaHooks && m.scriptEngine != nil
}
