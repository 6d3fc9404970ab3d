// Package extraction asks the completer which facts a conversational turn
// revealed about the user and stores them through the memory encoder.
// Extraction is best-effort: nothing in this package aborts the turn.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/mmu"
	"github.com/lexlapax/recall/pkg/reasoning"
)

// Encoder stores a fact. *mmu.MMU satisfies it.
type Encoder interface {
	EncodeToLTM(ctx context.Context, fact ltm.Fact) (ltm.InsertResult, error)
}

// Confirmer decides whether an extracted fact should be stored.
type Confirmer interface {
	Confirm(ctx context.Context, fact ltm.Fact) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, fact ltm.Fact) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, fact ltm.Fact) (bool, error) {
	return f(ctx, fact)
}

// Config contains configuration options for the Pipeline.
type Config struct {
	// Temperature for the extraction completion
	Temperature float64

	// MaxTokens limits the extraction response
	MaxTokens int

	// Model overrides the adapter's default model
	Model string
}

// DefaultConfig returns the default configuration for the Pipeline.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.0,
		MaxTokens:   512,
	}
}

// FactError pairs a fact with the reason it could not be stored.
type FactError struct {
	Fact ltm.Fact
	Err  error
}

// Report describes what happened to every extracted fact.
type Report struct {
	Outcome Outcome

	// Stored holds the records that were inserted
	Stored []ltm.MemoryRecord

	// Skipped holds facts the store already knew
	Skipped []ltm.Fact

	// Declined holds facts the confirmer rejected
	Declined []ltm.Fact

	// Filtered holds facts dropped by the before_encode hook
	Filtered []ltm.Fact

	// Failed holds facts whose insertion returned an error
	Failed []FactError
}

// Pipeline extracts facts from a turn and feeds them to an Encoder.
type Pipeline struct {
	completer reasoning.Completer
	encoder   Encoder
	confirmer Confirmer
	config    Config
}

// NewPipeline creates a pipeline. A nil confirmer stores every fact
// without asking.
func NewPipeline(completer reasoning.Completer, encoder Encoder, confirmer Confirmer, config Config) *Pipeline {
	log.Debug("Extraction pipeline initialized",
		"confirmation", confirmer != nil,
		"temperature", config.Temperature,
		"max_tokens", config.MaxTokens,
	)
	return &Pipeline{
		completer: completer,
		encoder:   encoder,
		confirmer: confirmer,
		config:    config,
	}
}

// SetConfirmer switches confirmation mode on (non-nil) or off (nil).
func (p *Pipeline) SetConfirmer(c Confirmer) {
	p.confirmer = c
}

// Extract asks the completer for the facts in a turn. A completer failure is
// logged and reported as Empty.
func (p *Pipeline) Extract(ctx context.Context, query, reply string) Outcome {
	opts := []reasoning.Option{
		reasoning.WithTemperature(p.config.Temperature),
	}
	if p.config.MaxTokens > 0 {
		opts = append(opts, reasoning.WithMaxTokens(p.config.MaxTokens))
	}
	if p.config.Model != "" {
		opts = append(opts, reasoning.WithModel(p.config.Model))
	}

	raw, err := p.completer.Process(ctx, BuildPrompt(query, reply), opts...)
	if err != nil {
		log.WarnContext(ctx, "Fact extraction request failed", "error", err)
		return Outcome{Kind: Empty}
	}

	outcome := Parse(raw)
	if outcome.Kind == ParseFailure {
		log.WarnContext(ctx, "Could not parse extracted facts", "response", truncate(raw, 200))
	}
	return outcome
}

// Process extracts facts from the turn and stores them, asking the
// confirmer first when one is set. Failures are collected per fact.
func (p *Pipeline) Process(ctx context.Context, query, reply string) Report {
	report := Report{Outcome: p.Extract(ctx, query, reply)}

	for _, fact := range report.Outcome.Facts {
		if p.confirmer != nil {
			ok, err := p.confirmer.Confirm(ctx, fact)
			if err != nil {
				log.WarnContext(ctx, "Confirmation failed, fact not stored", "key", fact.Key, "error", err)
				report.Declined = append(report.Declined, fact)
				continue
			}
			if !ok {
				report.Declined = append(report.Declined, fact)
				continue
			}
		}

		result, err := p.encoder.EncodeToLTM(ctx, fact)
		switch {
		case errors.Is(err, mmu.ErrFiltered):
			report.Filtered = append(report.Filtered, fact)
		case err != nil:
			log.ErrorContext(ctx, "Failed to store extracted fact", "key", fact.Key, "error", err)
			report.Failed = append(report.Failed, FactError{Fact: fact, Err: err})
		case result.Skipped:
			report.Skipped = append(report.Skipped, fact)
		default:
			report.Stored = append(report.Stored, result.Record)
		}
	}

	log.DebugContext(ctx, "Fact extraction finished",
		"outcome", report.Outcome.Kind.String(),
		"stored", len(report.Stored),
		"skipped", len(report.Skipped),
		"declined", len(report.Declined),
		"filtered", len(report.Filtered),
		"failed", len(report.Failed),
	)
	return report
}

// Instruction opens every extraction prompt.
const Instruction = "Extract any new, lasting facts about the user from the exchange below."

// BuildPrompt renders the extraction instruction for a turn.
func BuildPrompt(query, reply string) string {
	return fmt.Sprintf(`%s

Respond with only a JSON array. Each element is an object with:
- "key": a short snake_case name for the fact, such as "favorite_color" or "dog_name"
- "value": the fact itself, such as "blue"
- "category": optional, a single lowercase word such as "preferences" or "pets"

Respond with [] if the exchange contains nothing worth remembering.

User: %s
Assistant: %s`, Instruction, query, reply)
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
