package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	geminiURL          = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel = "gemini-2.5-flash"
)

var geminiRetry = retryPolicy{maxAttempts: 3, baseDelay: 500 * time.Millisecond, maxDelay: 4 * time.Second}

// GeminiClient calls the Google Gemini generateContent REST endpoint.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      retryPolicy
}

// NewGeminiClient returns a Gemini client. Zero values fall back to the defaults.
func NewGeminiClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *GeminiClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    geminiURL,
		retry:      newRetryPolicy(retryMax, baseDelay, maxDelay, geminiRetry),
	}
}

// WithBaseURL points the client at another endpoint (used in tests).
func (c *GeminiClient) WithBaseURL(u string) *GeminiClient {
	if u != "" {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
	return c
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ResponseID string `json:"responseId"`
}

// toGeminiRequest maps chat messages onto contents. System messages become the
// system instruction and the assistant role is renamed to "model".
func toGeminiRequest(req GenerateRequest) geminiRequest {
	var out geminiRequest
	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, geminiPart{Text: m.Content})
		case "assistant", "model":
			out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &geminiContent{Parts: system}
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		out.GenerationConfig = &geminiGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	}
	return out
}

// Generate sends the conversation to Gemini and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingKey)
	}
	if req.Model == "" {
		req.Model = DefaultGeminiModel
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(toGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s:generateContent", c.baseURL, url.PathEscape(req.Model))

	var out GenerateResponse
	err = c.retry.run(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

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
		var gresp geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&gresp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(gresp.Candidates) == 0 {
			return errors.New("gemini returned no candidates")
		}
		var text strings.Builder
		for _, p := range gresp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
		out = GenerateResponse{
			ID:      gresp.ResponseID,
			Choices: []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
			Usage: Usage{
				PromptTokens:     gresp.UsageMetadata.PromptTokenCount,
				CompletionTokens: gresp.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      gresp.UsageMetadata.TotalTokenCount,
			},
			RequestID: extractRequestID(resp),
		}
		if out.RequestID == "" {
			out.RequestID = gresp.ResponseID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
