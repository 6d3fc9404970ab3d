// Package openai adapts the OpenAI chat and embedding APIs, or any server
// speaking the same protocol, to reasoning.Engine.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/reasoning"
	"github.com/sashabaranov/go-openai"
)

// ErrEmptyAPIKey is returned when the API key is missing.
var ErrEmptyAPIKey = errors.New("API key cannot be empty")

const (
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// Config holds the configuration for the OpenAI adapter. Empty models fall
// back to gpt-4o-mini and text-embedding-3-small; MaxTokens and Temperature
// replace the request defaults when positive.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
}

// OpenAIAdapter implements reasoning.Engine.
type OpenAIAdapter struct {
	client *openai.Client
	config Config
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(config Config) (*OpenAIAdapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.ChatModel == "" {
		config.ChatModel = defaultChatModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = defaultEmbeddingModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// GenerateEmbeddings implements reasoning.Embedder with a single batched
// request. Vectors are returned in input order.
func (a *OpenAIAdapter) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	response, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(a.config.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(texts), len(response.Data))
	}

	// Data carries the input position of each vector; fall back to response
	// order when an index is missing or repeated.
	vectors := make([][]float32, len(texts))
	for i, item := range response.Data {
		pos := item.Index
		if pos < 0 || pos >= len(texts) || vectors[pos] != nil {
			pos = i
		}
		vectors[pos] = item.Embedding
	}

	log.DebugContext(ctx, "Generated OpenAI embeddings",
		"model", a.config.EmbeddingModel,
		"count", len(vectors),
		"dimensions", len(vectors[0]))
	return vectors, nil
}

// Process implements reasoning.Completer. The prompt is sent as one user
// message and the reply is trimmed. A completion without choices is an empty
// reply, not an error.
func (a *OpenAIAdapter) Process(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	options := a.options(opts)

	// A zero temperature is dropped by omitempty, which would mean the API
	// default of 1.
	temperature := float32(options.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	response, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       options.Model,
		Temperature: temperature,
		MaxTokens:   options.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		log.WarnContext(ctx, "OpenAI completion carried no choices", "model", options.Model)
		return "", nil
	}

	log.DebugContext(ctx, "Generated OpenAI completion",
		"model", options.Model,
		"total_tokens", response.Usage.TotalTokens,
		"finish_reason", response.Choices[0].FinishReason)
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// options layers the adapter's configured defaults under the request options.
func (a *OpenAIAdapter) options(opts []reasoning.Option) reasoning.Options {
	options := reasoning.DefaultOptions()
	options.Model = a.config.ChatModel
	if a.config.MaxTokens > 0 {
		options.MaxTokens = a.config.MaxTokens
	}
	if a.config.Temperature > 0 {
		options.Temperature = a.config.Temperature
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Model == "" {
		options.Model = a.config.ChatModel
	}
	return options
}
