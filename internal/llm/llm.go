// Package llm wraps the opaque generation service behind a small Generator
// interface with streaming and non-streaming modes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoOutput is returned when the model produces empty output. Empty output
// is a hard failure, never a degraded result.
var ErrNoOutput = errors.New("llm: model returned no output")

// TokenFunc receives ordered text chunks during a streaming call.
type TokenFunc func(token string)

// Generator issues exactly one generation call per invocation. No internal
// retries; a failure surfaces to the caller immediately.
type Generator interface {
	Query(ctx context.Context, prompt string) (string, error)
	QueryStream(ctx context.Context, prompt string, onToken TokenFunc) (string, error)
}

// Options configures a provider.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

func (o *Options) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 32768
	}
}

// NewGenerator is the provider factory. It is a package-level variable so
// tests can replace it with a stub; tests must restore it via t.Cleanup.
var NewGenerator func(opts Options) (Generator, error) = defaultNewGenerator

func defaultNewGenerator(opts Options) (Generator, error) {
	opts.defaults()
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "anthropic", "":
		return newAnthropicGenerator(opts)
	case "openai":
		return newOpenAIGenerator(opts)
	case "google", "gemini":
		return newGoogleGenerator(opts)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}

// resolveKey falls back to an environment variable when no explicit key is
// configured.
func resolveKey(explicit, envVar string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("llm: %s environment variable not set", envVar)
}
