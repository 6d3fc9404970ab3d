// Package assistant is the main facade: it answers a query with the help of
// remembered facts and the recent conversation, then learns new facts from
// the exchange.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/extraction"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/mem/stm"
	"github.com/lexlapax/recall/pkg/mmu"
	"github.com/lexlapax/recall/pkg/reasoning"
)

// Config contains configuration options for the Assistant.
type Config struct {
	// TopN is the number of memories injected into each prompt
	TopN int

	// Strategy selects the retriever; empty uses the MMU default
	Strategy string
}

// DefaultConfig returns the default configuration for the Assistant.
func DefaultConfig() Config {
	return Config{
		TopN:     3,
		Strategy: mmu.StrategyLinear,
	}
}

// Answer is the result of one conversational turn.
type Answer struct {
	// Reply is the completer's answer; empty means no usable reply
	Reply string

	// Memories are the facts that were put into the prompt
	Memories []mmu.ScoredRecord

	// Extraction is nil when extraction did not run
	Extraction *extraction.Report
}

// Assistant ties the memory unit, the conversation window, the completer and
// the extraction pipeline together.
type Assistant struct {
	memory    *mmu.MMU
	window    *stm.Window
	completer reasoning.Completer
	pipeline  *extraction.Pipeline
	config    Config

	// closers run in reverse order on Close
	closers []func() error
}

// New creates an Assistant. pipeline may be nil to disable extraction.
func New(memory *mmu.MMU, window *stm.Window, completer reasoning.Completer, pipeline *extraction.Pipeline, config Config) *Assistant {
	if config.TopN < 0 {
		config.TopN = 0
	}

	log.Debug("Assistant initialized",
		"top_n", config.TopN,
		"strategy", config.Strategy,
		"extraction_enabled", pipeline != nil,
		"window_capacity", window.Capacity(),
	)

	return &Assistant{
		memory:    memory,
		window:    window,
		completer: completer,
		pipeline:  pipeline,
		config:    config,
	}
}

// Ask answers query. It retrieves the most relevant memories, asks the
// completer with those memories and the conversation window, records the
// turn and extracts new facts from it. An empty reply is returned as is and
// leaves both the window and the store untouched.
//
// When the turn cannot be recorded the answer is still returned together
// with the persistence error.
func (a *Assistant) Ask(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, errors.Mark(fmt.Errorf("query is empty"), errors.ErrInvalidInput)
	}

	memories, err := a.Retrieve(ctx, query)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to retrieve memories: %w", err)
	}

	prompt := BuildPrompt(memories, a.window.List(), query)

	reply, err := a.completer.Process(ctx, prompt)
	if err != nil {
		log.ErrorContext(ctx, "Failed to process query", "error", err)
		return Answer{Memories: memories}, errors.Mark(fmt.Errorf("failed to generate reply: %w", err), errors.ErrCompleterUnavailable)
	}

	answer := Answer{Reply: strings.TrimSpace(reply), Memories: memories}
	if answer.Reply == "" {
		log.InfoContext(ctx, "Completer returned no usable reply")
		return answer, nil
	}

	if err := a.window.Append(ctx, stm.Turn{User: query, Assistant: answer.Reply}); err != nil {
		return answer, fmt.Errorf("failed to record conversation turn: %w", err)
	}

	if a.pipeline != nil {
		report := a.pipeline.Process(ctx, query, answer.Reply)
		answer.Extraction = &report
	}

	log.DebugContext(ctx, "Query processed successfully",
		"memories", len(memories),
		"reply_length", len(answer.Reply),
	)
	return answer, nil
}

// Retrieve ranks stored memories against query using the configured count.
func (a *Assistant) Retrieve(ctx context.Context, query string) ([]mmu.ScoredRecord, error) {
	return a.Search(ctx, query, a.config.TopN)
}

// Search ranks stored memories against query and returns up to limit of them.
func (a *Assistant) Search(ctx context.Context, query string, limit int) ([]mmu.ScoredRecord, error) {
	return a.memory.RetrieveFromLTM(ctx, query, mmu.RetrievalOptions{
		MaxResults: limit,
		Strategy:   a.config.Strategy,
	})
}

// Remember stores a fact through the encoder, exactly as extraction would.
func (a *Assistant) Remember(ctx context.Context, fact ltm.Fact) (ltm.InsertResult, error) {
	return a.memory.EncodeToLTM(ctx, fact)
}

// Memories lists stored facts in insertion order, optionally only those in
// category.
func (a *Assistant) Memories(category string) []ltm.MemoryRecord {
	return a.memory.Store().List(category)
}

// Categories returns the number of facts per non-empty category.
func (a *Assistant) Categories() map[string]int {
	return a.memory.Store().CategorySummary()
}

// Forget deletes the memory with the given id. A missing id is reported
// through the boolean, not as an error.
func (a *Assistant) Forget(ctx context.Context, id int64) (ltm.MemoryRecord, bool, error) {
	return a.memory.Store().DeleteByID(ctx, id)
}

// ForgetAll deletes every memory.
func (a *Assistant) ForgetAll(ctx context.Context) error {
	return a.memory.Store().Clear(ctx)
}

// Conversation returns the turns in the window, oldest first.
func (a *Assistant) Conversation() []stm.Turn {
	return a.window.List()
}

// ClearConversation empties the conversation window.
func (a *Assistant) ClearConversation(ctx context.Context) error {
	return a.window.Clear(ctx)
}

// SetConfirmer switches extraction confirmation on or off. It has no effect
// when extraction is disabled.
func (a *Assistant) SetConfirmer(c extraction.Confirmer) {
	if a.pipeline != nil {
		a.pipeline.SetConfirmer(c)
	}
}

// Close releases every resource acquired by NewFromConfig.
func (a *Assistant) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// BuildPrompt renders the completion prompt: the remembered facts as
// "key: value" lines, the conversation window as alternating User and
// Assistant lines, then the new query.
func BuildPrompt(memories []mmu.ScoredRecord, turns []stm.Turn, query string) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful personal assistant. Use the facts you know about the user when they are relevant to the question.\n\n")

	sb.WriteString("Known facts about the user:\n")
	if len(memories) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, m := range memories {
		sb.WriteString(ltm.FormatText(m.Record.Key, m.Record.Value))
		sb.WriteString("\n")
	}

	if len(turns) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, turn := range turns {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.User, turn.Assistant)
		}
	}

	fmt.Fprintf(&sb, "\nUser: %s\nAssistant:", query)
	return sb.String()
}
