// Package ai holds the text-generation runtimes used for narrative notes.
package ai

import "context"

// Runtime is implemented by every text-generation backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers accepted by the ai_provider setting.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
)

var (
	_ Runtime = (*Client)(nil)
	_ Runtime = (*OllamaClient)(nil)
	_ Runtime = (*GeminiClient)(nil)
)
