// Package mock provides a deterministic reasoning engine. The CLI uses it
// when no provider is configured and tests use it to script model output.
package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/reasoning"
)

// ErrMock is returned by the mock engine when errors are enabled.
var ErrMock = errors.New("mock reasoning engine error")

// DefaultDimensions is the size of generated hash embeddings.
const DefaultDimensions = 64

// Method names recorded in the call history.
const (
	MethodProcess    = "Process"
	MethodEmbeddings = "GenerateEmbeddings"
)

// Call is one recorded invocation. Process records [prompt, reasoning.Options];
// GenerateEmbeddings records [[]string].
type Call struct {
	Method string
	Args   []interface{}
}

// rule pairs a prompt or text pattern with its canned output. Rules are
// matched in insertion order.
type rule[T any] struct {
	pattern string
	output  T
}

// MockEngine implements reasoning.Engine with canned completions and
// deterministic embeddings.
type MockEngine struct {
	mu sync.RWMutex

	completions    []rule[string]
	fallbackReply  string
	embeddings     []rule[[]float32]
	fixedEmbedding []float32
	dimensions     int
	exactMatch     bool
	processErr     error
	embedErr       error
	calls          []Call
}

// MockOption configures a MockEngine.
type MockOption func(*MockEngine)

// WithDefaultResponse sets the reply used when no canned completion matches.
func WithDefaultResponse(resp string) MockOption {
	return func(m *MockEngine) { m.fallbackReply = resp }
}

// WithDefaultEmbedding makes every unmatched text embed to embedding.
func WithDefaultEmbedding(embedding []float32) MockOption {
	return func(m *MockEngine) { m.fixedEmbedding = embedding }
}

// WithDimensions sets the size of generated hash embeddings.
func WithDimensions(dimensions int) MockOption {
	return func(m *MockEngine) {
		if dimensions > 0 {
			m.dimensions = dimensions
		}
	}
}

// WithExactMatch requires patterns to equal the whole prompt or text instead
// of appearing inside it.
func WithExactMatch(exact bool) MockOption {
	return func(m *MockEngine) { m.exactMatch = exact }
}

// WithShouldError makes both methods fail with ErrMock.
func WithShouldError(shouldErr bool) MockOption {
	return func(m *MockEngine) { m.setShouldError(shouldErr) }
}

// NewMockEngine creates a MockEngine.
func NewMockEngine(opts ...MockOption) *MockEngine {
	m := &MockEngine{
		fallbackReply: "This is a mock response",
		dimensions:    DefaultDimensions,
	}
	for _, opt := range opts {
		opt(m)
	}

	log.Debug("Created mock reasoning engine", "exact_match", m.exactMatch, "dimensions", m.dimensions)
	return m
}

func (m *MockEngine) matches(input, pattern string) bool {
	if m.exactMatch {
		return input == pattern
	}
	return strings.Contains(input, pattern)
}

// Process implements reasoning.Completer.
func (m *MockEngine) Process(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	options := reasoning.Apply(opts...)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Method: MethodProcess, Args: []interface{}{prompt, options}})
	if m.processErr != nil {
		return "", m.processErr
	}

	log.DebugContext(ctx, "Mock completion",
		"prompt_length", len(prompt),
		"temperature", options.Temperature,
		"max_tokens", options.MaxTokens)

	for _, r := range m.completions {
		if m.matches(prompt, r.pattern) {
			return r.output, nil
		}
	}
	return m.fallbackReply, nil
}

// GenerateEmbeddings implements reasoning.Embedder.
func (m *MockEngine) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Method: MethodEmbeddings, Args: []interface{}{append([]string(nil), texts...)}})
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.embed(text)
	}
	log.DebugContext(ctx, "Mock embeddings", "texts", len(texts), "dimensions", m.dimensions)
	return out, nil
}

// embed resolves one text. Callers hold the lock.
func (m *MockEngine) embed(text string) []float32 {
	for _, r := range m.embeddings {
		if m.matches(text, r.pattern) {
			return append([]float32(nil), r.output...)
		}
	}
	if m.fixedEmbedding != nil {
		return append([]float32(nil), m.fixedEmbedding...)
	}
	return HashEmbedding(text, m.dimensions)
}

// AddResponse registers a canned completion for prompts matching pattern.
func (m *MockEngine) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, rule[string]{pattern: pattern, output: response})
}

// SetDefaultResponse sets the reply used when no canned completion matches.
func (m *MockEngine) SetDefaultResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackReply = response
}

// AddEmbedding registers a canned embedding for texts matching pattern. A
// later registration for the same pattern replaces the earlier one.
func (m *MockEngine) AddEmbedding(pattern string, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.embeddings {
		if m.embeddings[i].pattern == pattern {
			m.embeddings[i].output = embedding
			return
		}
	}
	m.embeddings = append(m.embeddings, rule[[]float32]{pattern: pattern, output: embedding})
}

// SetDefaultEmbedding sets the embedding for unmatched text. nil restores
// hash embeddings.
func (m *MockEngine) SetDefaultEmbedding(embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedEmbedding = embedding
}

// SetExactMatch switches between whole-input and substring matching.
func (m *MockEngine) SetExactMatch(exact bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exactMatch = exact
}

// SetShouldError toggles ErrMock on both methods.
func (m *MockEngine) SetShouldError(shouldErr bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setShouldError(shouldErr)
}

func (m *MockEngine) setShouldError(shouldErr bool) {
	var err error
	if shouldErr {
		err = ErrMock
	}
	m.processErr, m.embedErr = err, err
}

// SetProcessError makes Process fail with err; nil clears it.
func (m *MockEngine) SetProcessError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processErr = err
}

// SetEmbedError makes GenerateEmbeddings fail with err; nil clears it.
func (m *MockEngine) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
}

// GetCallHistory returns a copy of the recorded calls.
func (m *MockEngine) GetCallHistory() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *MockEngine) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Prompts returns every prompt passed to Process, in call order.
func (m *MockEngine) Prompts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var prompts []string
	for _, c := range m.calls {
		if c.Method == MethodProcess {
			prompts = append(prompts, c.Args[0].(string))
		}
	}
	return prompts
}

// ClearHistory forgets recorded calls.
func (m *MockEngine) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
