package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const chatCompletionReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1730332800,
  "model": "gpt-4o-mini",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"title\":\"t\"}"}}
  ]
}`

func TestOpenAIClientComplete(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionReply))
	}))
	defer server.Close()

	client := NewOpenAIClient(observability.DiscardLogger(), config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/",
		Model:   "gpt-4o-mini",
	})

	maxTokens := 1024

	text, err := client.Complete(context.Background(), Prompt{System: "sys", User: "usr"}, types.DaemonConfig{Temperature: 0.3, MaxTokens: &maxTokens})
	require.NoError(t, err)

	assert.Equal(t, `{"title":"t"}`, text)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 1e-9)
	assert.InDelta(t, 1024, got["max_tokens"], 1e-9)

	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClientErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		client := NewOpenAIClient(observability.DiscardLogger(), config.OpenAIConfig{Model: "gpt-4o-mini"})

		_, err := client.Complete(context.Background(), Prompt{}, types.DaemonConfig{})
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("server error", func(t *testing.T) {
		var calls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(observability.DiscardLogger(), config.OpenAIConfig{
			APIKey:  "sk-test",
			BaseURL: server.URL + "/",
			Model:   "gpt-4o-mini",
		})

		_, err := client.Complete(context.Background(), Prompt{}, types.DaemonConfig{})
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Equal(t, int32(1), calls.Load(), "exactly one attempt")
	})

	t.Run("no choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(observability.DiscardLogger(), config.OpenAIConfig{
			APIKey:  "sk-test",
			BaseURL: server.URL + "/",
		})

		_, err := client.Complete(context.Background(), Prompt{}, types.DaemonConfig{})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
