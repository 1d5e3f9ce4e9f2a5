package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// APIKey is the OpenRouter or Gemini key, depending on the provider.
	APIKey string
	// Host is the Ollama base URL.
	Host string
	// BaseURL overrides the hosted endpoint.
	BaseURL string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]RuntimeFactory{}
)

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = f
}

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(cfg), true
}

// NewRuntime is GetRuntime with an error naming the known providers.
func NewRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	if rt, ok := GetRuntime(name, cfg); ok {
		return rt, nil
	}
	return nil, fmt.Errorf("unknown ai provider %q (known: %s)", name, strings.Join(Providers(), ", "))
}

// Providers lists the registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
	RegisterRuntime(ProviderGemini, func(c RuntimeConfig) Runtime {
		return NewGeminiClient(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay).WithBaseURL(c.BaseURL)
	})
}
