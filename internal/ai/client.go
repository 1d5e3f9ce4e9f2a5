package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1"

var openRouterRetry = retryPolicy{maxAttempts: 3, baseDelay: 500 * time.Millisecond, maxDelay: 4 * time.Second}

// Client talks to the OpenRouter chat completions API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      retryPolicy
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content, or "" when there is none.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *Client {
	return NewClient(apiKey, 0, 0, 0, 0)
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
// Zero values fall back to the defaults.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    openRouterURL,
		retry:      newRetryPolicy(retryMax, baseDelay, maxDelay, openRouterRetry),
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	c := NewClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

func validateRequest(req GenerateRequest) error {
	if req.Model == "" {
		return errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	return nil
}

// Generate sends a non-streaming chat completion, retrying 429/5xx and transient network errors.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrMissingKey)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	var out GenerateResponse
	err = c.retry.run(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/uidpulse")
		httpReq.Header.Set("X-Title", "uidpulse")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) {
				return retryAfter(fmt.Errorf("http request: %w", err), 0)
			}
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		out.RequestID = extractRequestID(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
