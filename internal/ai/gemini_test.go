package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerate(t *testing.T) {
	var captured geminiRequest
	var gotKey, gotPath string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{
					map[string]any{"text": "Enrolment is "},
					map[string]any{"text": "concentrated in Goa."},
				}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 20, "candidatesTokenCount": 6, "totalTokenCount": 26},
			"responseId":    "resp-1",
		})
	}))

	c := NewGeminiClient("secret", 2*time.Second, 1, 0, 0).WithBaseURL(srv.URL + "/")
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Messages: []Message{
			{Role: "system", Content: "You are a senior policy analyst."},
			{Role: "user", Content: "Explain the KPIs."},
		},
		MaxTokens:   256,
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Enrolment is concentrated in Goa.", resp.Text())
	assert.Equal(t, "resp-1", resp.RequestID)
	assert.Equal(t, 26, resp.Usage.TotalTokens)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/"+DefaultGeminiModel+":generateContent", gotPath)
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are a senior policy analyst.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)
	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, 256, captured.GenerationConfig.MaxOutputTokens)
}

func TestGeminiErrorEnvelope(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED",
		}})
	}))
	c := NewGeminiClient("bad", 2*time.Second, 3, time.Millisecond, time.Millisecond).WithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-x", Messages: []Message{{Role: "user", Content: "hi"}}})
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "permission_denied", ae.Code)
	assert.Equal(t, "API key not valid", ae.Message)
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGeminiClient("", 0, 0, 0, 0).Generate(context.Background(), hello)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestToGeminiRequestMapsRoles(t *testing.T) {
	req := toGeminiRequest(GenerateRequest{Messages: []Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
	}})
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Nil(t, req.SystemInstruction)
	assert.Nil(t, req.GenerationConfig)
}
