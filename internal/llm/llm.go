// Package llm talks to the remote chat-completion backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/esnunes/codewizard/internal/config"
)

var (
	ErrNoAPIKey        = errors.New("API key not configured")
	ErrEmptyCompletion = errors.New("no completion returned")
)

// Request is a single prompt plus sampling settings. Zero values fall back
// to the client's configured defaults.
type Request struct {
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// Completer turns a rendered prompt into generated text. Implementations
// make exactly one remote attempt per call.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// New builds the Completer for cfg.LLM.Provider.
func New(cfg *config.Config, logger *zap.Logger) (Completer, error) {
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}
	opts := Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     timeout,
		Command:     cfg.LLM.Command,
	}

	def := providerDefaults[cfg.LLM.Provider]
	if opts.BaseURL == "" {
		opts.BaseURL = def.baseURL
	}
	if opts.Model == "" {
		opts.Model = def.model
	}

	switch cfg.LLM.Provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		return NewOpenAIClient(opts, logger), nil
	case config.ProviderGemini:
		return NewGeminiClient(opts, logger), nil
	case config.ProviderCLI:
		return NewCLIClient(opts, logger), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
}

// providerDefaults fill in the endpoint and model a config leaves blank.
// The cli provider has none: the local tool picks its own model.
var providerDefaults = map[string]struct {
	baseURL string
	model   string
}{
	config.ProviderGroq:   {baseURL: "https://api.groq.com/openai/v1", model: "mixtral-8x7b-32768"},
	config.ProviderOpenAI: {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	config.ProviderGemini: {model: "gemini-2.0-flash"},
}

// Options is shared by all clients.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Command     string
}

func (o Options) temperature(req Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return o.Temperature
}

func (o Options) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.MaxTokens
}
