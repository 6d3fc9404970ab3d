package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/reasoning"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrNoText is returned when a response carries no text blocks.
	ErrNoText = errors.New("no text content returned")
)

// Config holds the configuration for the Anthropic adapter.
type Config struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model used for completions, e.g., "claude-3-5-haiku-latest".
	Model string
	// BaseURL is the base URL for the API (for testing).
	BaseURL string
	// MaxTokens is the default completion length.
	MaxTokens int
	// RequestOptions are passed to the SDK client as-is.
	RequestOptions []option.RequestOption
}

// AnthropicAdapter implements reasoning.Completer using the Messages API.
// Anthropic has no embedding endpoint, so it is paired with another embedder.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(config Config) (*AnthropicAdapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-latest"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	opts = append(opts, config.RequestOptions...)

	return &AnthropicAdapter{
		client:    anthropic.NewClient(opts...),
		model:     config.Model,
		maxTokens: config.MaxTokens,
	}, nil
}

// Process implements reasoning.Completer.
func (a *AnthropicAdapter) Process(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	options := reasoning.DefaultOptions()
	options.MaxTokens = a.maxTokens
	for _, opt := range opts {
		opt(&options)
	}

	model := a.model
	if options.Model != "" {
		model = options.Model
	}

	log.DebugContext(ctx, "Processing Claude request", "model", model, "prompt_length", len(prompt))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(options.MaxTokens),
		Temperature: anthropic.Float(options.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		log.ErrorContext(ctx, "Claude API error", "error", err)
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrNoText
	}

	log.DebugContext(ctx, "Claude responded",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	return strings.TrimSpace(text.String()), nil
}
