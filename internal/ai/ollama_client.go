package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

var ollamaRetry = retryPolicy{maxAttempts: 2, baseDelay: 200 * time.Millisecond, maxDelay: time.Second}

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retry      retryPolicy
}

// NewOllamaClient creates a client targeting host (e.g., http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		host:       host,
		retry:      newRetryPolicy(retryMax, baseDelay, maxDelay, ollamaRetry),
	}
}

// Structures aligned with Ollama /api/chat (non-streaming).
type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Generate sends a chat request to Ollama and maps the response to GenerateResponse.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Options: map[string]any{}}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.host + "/api/chat"

	var out GenerateResponse
	err = c.retry.run(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			uerr := &UnreachableError{Host: c.host, Err: err}
			if isRetryableNetErr(err) {
				return retryAfter(uerr, 0)
			}
			return uerr
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(resp)
		}
		var oresp ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		out = GenerateResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
			Usage: Usage{
				PromptTokens:     oresp.PromptEvalCount,
				CompletionTokens: oresp.EvalCount,
				TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
			},
			// Ollama returns no id; a local one keeps log correlation working.
			RequestID: "ollama_" + uuid.NewString(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
