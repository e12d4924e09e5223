package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// RegisterFlags adds the configuration flags to fs. Defaults are left empty
// where an environment variable or the config file may supply the value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "Path to a YAML config file (env: INBOXCHAT_CONFIG)")
	fs.String(FlagStoreDSN, d.StoreDSN, "Session store DSN: sqlite://, postgres://, redis:// or memory:// (env: STORE_DSN)")
	fs.String(FlagLLMProvider, d.LLM.Provider, "Model provider: gemini, openai or anthropic (env: LLM_PROVIDER)")
	fs.String(FlagLLMModel, "", "Model name, defaults per provider (env: LLM_MODEL)")
	fs.String(FlagLLMAPIKey, "", "Model API key (env: LLM_API_KEY or the provider specific key)")
	fs.Float64(FlagTemperature, d.LLM.Temperature, "Sampling temperature (env: LLM_TEMPERATURE)")
	fs.Int(FlagMaxIterations, d.MaxIterations, "Maximum model calls per user message (env: AGENT_MAX_ITERATIONS)")
	fs.String(FlagCredentials, d.Google.CredentialsFile, "Google OAuth client credentials file (env: GOOGLE_CREDENTIALS_FILE)")
	fs.String(FlagTokenFile, d.Google.TokenFile, "Cached Google token file (env: GOOGLE_TOKEN_FILE)")
	fs.String(FlagRedirectURL, d.Google.RedirectURL, "OAuth redirect URL (env: OAUTH_REDIRECT_URL)")
	fs.Bool(FlagReadOnly, false, "Disable tools that send or modify mail (env: INBOXCHAT_READ_ONLY)")
	fs.String(FlagHTTPAddr, d.HTTPAddr, "Chat server listen address (env: HTTP_ADDR)")
	fs.String(FlagBaseURL, "", "Public URL of the chat server (env: BASE_URL)")
	fs.Duration(FlagSessionIdle, d.SessionIdle, "Save and drop conversations idle this long, 0 disables (env: INBOXCHAT_SESSION_IDLE)")
	fs.String(FlagMetricsAddr, d.Metrics.Addr, "Metrics listen address (env: METRICS_ADDR)")
	fs.String(FlagMetricsExporter, d.Metrics.Exporter, "Metrics exporter: prometheus, otlp or stdout (env: METRICS_EXPORTER)")
}

// Resolve builds the configuration: defaults, then the config file, then the
// environment, then flags the user set explicitly.
func Resolve(fs *pflag.FlagSet, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	path, _ := fs.GetString(FlagConfig)
	if path == "" {
		path, _ = lookup("INBOXCHAT_CONFIG")
	}
	if path != "" {
		if err := LoadFile(&cfg, path, lookup); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		for _, k := range []string{"LLM_API_KEY", APIKeyEnv(cfg.LLM.Provider)} {
			if v, ok := lookup(k); ok && v != "" {
				cfg.LLM.APIKey = v
				break
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagStoreDSN:        &cfg.StoreDSN,
		FlagLLMProvider:     &cfg.LLM.Provider,
		FlagLLMModel:        &cfg.LLM.Model,
		FlagLLMAPIKey:       &cfg.LLM.APIKey,
		FlagCredentials:     &cfg.Google.CredentialsFile,
		FlagTokenFile:       &cfg.Google.TokenFile,
		FlagRedirectURL:     &cfg.Google.RedirectURL,
		FlagHTTPAddr:        &cfg.HTTPAddr,
		FlagBaseURL:         &cfg.BaseURL,
		FlagMetricsAddr:     &cfg.Metrics.Addr,
		FlagMetricsExporter: &cfg.Metrics.Exporter,
	}

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if dst, ok := strs[f.Name]; ok {
			*dst = f.Value.String()
			return
		}
		switch f.Name {
		case FlagTemperature:
			cfg.LLM.Temperature, err = fs.GetFloat64(f.Name)
		case FlagMaxIterations:
			cfg.MaxIterations, err = fs.GetInt(f.Name)
		case FlagReadOnly:
			cfg.ReadOnly, err = fs.GetBool(f.Name)
		case FlagSessionIdle:
			cfg.SessionIdle, err = fs.GetDuration(f.Name)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid flag value: %w", err)
	}
	return nil
}
