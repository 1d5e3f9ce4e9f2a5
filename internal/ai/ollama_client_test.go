package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var captured ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hello from ollama"},
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        4,
		})
	}))

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	messages := []Message{
		{Role: "system", Content: "You are a policy analyst"},
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there!"},
		{Role: "user", Content: "Summarise"},
	}
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: messages, MaxTokens: 16, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hello from ollama", resp.Text())
	assert.True(t, strings.HasPrefix(resp.RequestID, "ollama_"))
	assert.Equal(t, 16, resp.Usage.TotalTokens)

	assert.Equal(t, messages, captured.Messages)
	assert.False(t, captured.Stream)
	assert.EqualValues(t, 16, captured.Options["num_predict"])
	assert.EqualValues(t, 0.2, captured.Options["temperature"])
}

func TestOllamaGenerateErrors(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "chat") {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "model \"nope\" not found, try pulling it first"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope", Messages: []Message{{Role: "user", Content: "hi"}}})
	var mnf *ModelNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Contains(t, mnf.Message, "try pulling")

	_, err = c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest"})
	assert.EqualError(t, err, "messages cannot be empty")
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", 500*time.Millisecond, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	var ue *UnreachableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "http://127.0.0.1:1", ue.Host)
}
