// Package llm provides completion clients for the supported AI providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned when a provider is configured without a key.
var ErrMissingAPIKey = errors.New("AI API key is required")

// CompletionRequest represents a non-streaming completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// DefaultModel is used when a request names no model.
	DefaultModel() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderGroq       Provider = "groq"
)

// preset holds the defaults of an OpenAI-compatible provider.
type preset struct {
	baseURL string
	model   string
}

var presets = map[Provider]preset{
	ProviderOpenAI:     {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	ProviderOpenRouter: {baseURL: "https://openrouter.ai/api/v1", model: "openai/gpt-4o-mini"},
	ProviderGroq:       {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
}

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	APIKey   string
	// BaseURL overrides the provider's endpoint.
	BaseURL string
	Model   string
}

// NewClient creates a new LLM client based on provider.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	provider := Provider(strings.ToLower(string(cfg.Provider)))
	if provider == ProviderAnthropic {
		return NewAnthropicClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	}

	p, ok := presets[provider]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}
	model := cfg.Model
	if model == "" {
		model = p.model
	}
	return NewOpenAIClient(string(provider), cfg.APIKey, baseURL, model)
}
