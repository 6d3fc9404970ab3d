// Package reasoning defines the completion and embedding ports used by the
// assistant, plus helpers that validate embedder output.
package reasoning

import (
	"context"
	"fmt"

	"github.com/lexlapax/recall/pkg/errors"
)

// Option adjusts a single completion request.
type Option func(*Options)

// Options are the per-request generation settings. A zero Model means the
// adapter's configured model.
type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// DefaultOptions suit conversational replies. Extraction overrides them with
// a zero temperature.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, MaxTokens: 1024}
}

// Apply returns DefaultOptions with opts applied in order.
func Apply(opts ...Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithTemperature(temp float64) Option { return func(o *Options) { o.Temperature = temp } }
func WithMaxTokens(tokens int) Option { return func(o *Options) { o.MaxTokens = tokens } }
func WithModel(model string) Option { return func(o *Options) { o.Model = model } }

// Completer turns a prompt into generated text.
type Completer interface {
	// Process sends a prompt to the model and returns the result.
	Process(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	// GenerateEmbeddings creates one vector per text, in input order.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine is a provider that can both complete and embed.
type Engine interface {
	Completer
	Embedder
}

// Embed embeds a single text. Failures and malformed responses are marked
// with errors.ErrEmbedderUnavailable.
func Embed(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := EmbedAll(ctx, e, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedAll embeds texts with one call and checks that every vector is present
// and that all vectors share a dimension.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	vectors, err := e.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrEmbedderUnavailable)
	}
	if len(vectors) != len(texts) {
		return nil, errors.Mark(
			fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts)),
			errors.ErrEmbedderUnavailable,
		)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, errors.Mark(fmt.Errorf("embedder returned an empty vector for text %d", i), errors.ErrEmbedderUnavailable)
		}
		if len(v) != len(vectors[0]) {
			return nil, errors.Mark(
				fmt.Errorf("embedder returned vectors of %d and %d dimensions", len(vectors[0]), len(v)),
				errors.ErrDimensionMismatch,
			)
		}
	}
	return vectors, nil
}
