package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Supported providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default models per provider.
const (
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"

	DefaultTemperature = 0.3
	defaultMaxTokens   = 4096
)

var (
	ErrUnknownProvider = errors.New("unknown model provider")
	ErrMissingAPIKey   = errors.New("model API key is required")
	ErrEmptyResponse   = errors.New("model returned no content")
)

// Model produces the next reply for a transcript.
type Model interface {
	// Provider returns the provider id, e.g. "gemini".
	Provider() string
	// Name returns the model name.
	Name() string
	// Generate runs one non-streaming reasoning step.
	Generate(ctx context.Context, req *Request) (Reply, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int

	// BaseURL overrides the provider endpoint.
	BaseURL string

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return DefaultGeminiModel
	}
}

// New creates the model for cfg.Provider. Gemini clients hold a connection
// and should be closed with Close when done.
func New(ctx context.Context, cfg Config) (Model, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for provider %s", ErrMissingAPIKey, cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: gemini, openai, anthropic)", ErrUnknownProvider, cfg.Provider)
	}
}

// Close releases resources held by m, if any.
func Close(m Model) error {
	if c, ok := m.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
