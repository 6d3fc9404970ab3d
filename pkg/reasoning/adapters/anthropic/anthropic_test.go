package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/lexlapax/recall/pkg/reasoning"
	"github.com/lexlapax/recall/pkg/reasoning/adapters/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageResponse = `{
	"id": "msg_123",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-5-haiku-latest",
	"content": [
		{"type": "text", "text": "Your favorite color "},
		{"type": "text", "text": "is blue."}
	],
	"stop_reason": "end_turn",
	"stop_sequence": null,
	"usage": {"input_tokens": 12, "output_tokens": 7}
}`

// mockAnthropicServer answers every request with body and records the
// decoded request.
func mockAnthropicServer(t *testing.T, status int, body string, captured *map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		if captured != nil {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, captured))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	}))
}

func newAdapter(t *testing.T, url string) *anthropic.AnthropicAdapter {
	t.Helper()
	adapter, err := anthropic.NewAnthropicAdapter(anthropic.Config{
		APIKey:         "test-key",
		BaseURL:        url,
		MaxTokens:      300,
		RequestOptions: []option.RequestOption{option.WithMaxRetries(0)},
	})
	require.NoError(t, err)
	return adapter
}

func TestProcess_Success(t *testing.T) {
	var captured map[string]interface{}
	server := mockAnthropicServer(t, http.StatusOK, messageResponse, &captured)
	defer server.Close()

	response, err := newAdapter(t, server.URL).Process(context.Background(), "What is my favorite color?")
	require.NoError(t, err)
	assert.Equal(t, "Your favorite color is blue.", response)

	assert.Equal(t, "claude-3-5-haiku-latest", captured["model"])
	assert.EqualValues(t, 300, captured["max_tokens"])

	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
}

func TestProcess_Options(t *testing.T) {
	var captured map[string]interface{}
	server := mockAnthropicServer(t, http.StatusOK, messageResponse, &captured)
	defer server.Close()

	_, err := newAdapter(t, server.URL).Process(context.Background(), "extract",
		reasoning.WithModel("claude-sonnet-4-0"),
		reasoning.WithTemperature(0),
		reasoning.WithMaxTokens(50),
	)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-0", captured["model"])
	assert.EqualValues(t, 50, captured["max_tokens"])
	assert.EqualValues(t, 0, captured["temperature"])
}

func TestProcess_NoText(t *testing.T) {
	body := `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "m",
		"content": [], "stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 0}
	}`
	server := mockAnthropicServer(t, http.StatusOK, body, nil)
	defer server.Close()

	_, err := newAdapter(t, server.URL).Process(context.Background(), "hello")
	assert.ErrorIs(t, err, anthropic.ErrNoText)
}

func TestProcess_APIError(t *testing.T) {
	body := `{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`
	server := mockAnthropicServer(t, http.StatusUnauthorized, body, nil)
	defer server.Close()

	response, err := newAdapter(t, server.URL).Process(context.Background(), "hello")
	assert.Error(t, err)
	assert.Empty(t, response)
}

func TestInitialization(t *testing.T) {
	_, err := anthropic.NewAnthropicAdapter(anthropic.Config{})
	assert.ErrorIs(t, err, anthropic.ErrEmptyAPIKey)

	adapter, err := anthropic.NewAnthropicAdapter(anthropic.Config{APIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}
