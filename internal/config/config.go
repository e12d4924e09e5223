// Package config resolves the runtime configuration from defaults, an
// optional YAML file, environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teemow/inboxchat/internal/agent"
	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/google"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/llm"
)

// Flag names.
const (
	FlagConfig          = "config"
	FlagStoreDSN        = "store-dsn"
	FlagLLMProvider     = "llm-provider"
	FlagLLMModel        = "llm-model"
	FlagLLMAPIKey       = "llm-api-key"
	FlagTemperature     = "temperature"
	FlagMaxIterations   = "max-iterations"
	FlagCredentials     = "credentials"
	FlagTokenFile       = "token-file"
	FlagRedirectURL     = "redirect-url"
	FlagReadOnly        = "read-only"
	FlagHTTPAddr        = "http-addr"
	FlagBaseURL         = "base-url"
	FlagSessionIdle     = "session-idle"
	FlagMetricsAddr     = "metrics-addr"
	FlagMetricsExporter = "metrics-exporter"
)

// DefaultRedirectURL is the OAuth callback of a locally running server.
const DefaultRedirectURL = "http://localhost:8080/auth/callback"

// Config is the resolved configuration.
type Config struct {
	StoreDSN      string        `yaml:"store_dsn"`
	LLM           LLM           `yaml:"llm"`
	MaxIterations int           `yaml:"max_iterations"`
	Google        Google        `yaml:"google"`
	ReadOnly      bool          `yaml:"read_only"`
	HTTPAddr      string        `yaml:"http_addr"`
	BaseURL       string        `yaml:"base_url"`
	SessionIdle   time.Duration `yaml:"session_idle"`
	Metrics       Metrics       `yaml:"metrics"`
}

// LLM selects the language model.
type LLM struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
}

// Google configures the OAuth client.
type Google struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	RedirectURL     string `yaml:"redirect_url"`
}

// Metrics configures the metrics listener.
type Metrics struct {
	Addr     string `yaml:"addr"`
	Exporter string `yaml:"exporter"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		StoreDSN: "sqlite://" + filepath.Join(dataDir(), "sessions.db"),
		LLM: LLM{
			Provider:    llm.ProviderGemini,
			Temperature: llm.DefaultTemperature,
		},
		MaxIterations: agent.DefaultMaxIterations,
		Google: Google{
			CredentialsFile: filepath.Join(configDir(), "inboxchat", "credentials.json"),
			TokenFile:       google.DefaultTokenPath(),
			RedirectURL:     DefaultRedirectURL,
		},
		HTTPAddr:    ":8080",
		SessionIdle: chat.DefaultIdleTimeout,
		Metrics: Metrics{
			Addr:     ":9090",
			Exporter: instrumentation.ExporterPrometheus,
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations))
	}
	return errors.Join(errs...)
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFile overlays a YAML file onto cfg. ${VAR} references in the file are
// expanded from the environment.
func LoadFile(cfg *Config, path string, lookup LookupFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := os.Expand(string(data), func(key string) string {
		v, _ := lookup(key)
		return v
	})

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := get("STORE_DSN", "MONGODB_URI"); ok {
		cfg.StoreDSN = v
	}
	if v, ok := get("LLM_PROVIDER"); ok {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v, ok := get("LLM_MODEL"); ok {
		cfg.LLM.Model = v
	}
	if v, ok := get("LLM_BASE_URL"); ok {
		cfg.LLM.BaseURL = v
	}
	if v, ok := get("GOOGLE_CREDENTIALS_FILE"); ok {
		cfg.Google.CredentialsFile = v
	}
	if v, ok := get("GOOGLE_TOKEN_FILE"); ok {
		cfg.Google.TokenFile = v
	}
	if v, ok := get("OAUTH_REDIRECT_URL"); ok {
		cfg.Google.RedirectURL = v
	}
	if v, ok := get("HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := get("BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := get("METRICS_ADDR"); ok {
		cfg.Metrics.Addr = v
	}
	if v, ok := get("METRICS_EXPORTER"); ok {
		cfg.Metrics.Exporter = v
	}

	var errs []error
	if v, ok := get("LLM_TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TEMPERATURE: %w", err))
		}
		cfg.LLM.Temperature = f
	}
	if v, ok := get("AGENT_MAX_ITERATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AGENT_MAX_ITERATIONS: %w", err))
		}
		cfg.MaxIterations = n
	}
	if v, ok := get("INBOXCHAT_READ_ONLY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("INBOXCHAT_READ_ONLY: %w", err))
		}
		cfg.ReadOnly = b
	}
	if v, ok := get("INBOXCHAT_SESSION_IDLE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("INBOXCHAT_SESSION_IDLE: %w", err))
		}
		cfg.SessionIdle = d
	}
	return errors.Join(errs...)
}

// APIKeyEnv returns the provider specific API key variable.
func APIKeyEnv(provider string) string {
	switch provider {
	case llm.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case llm.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "inboxchat")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "inboxchat")
	}
	return filepath.Join(os.TempDir(), "inboxchat")
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
