package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/agent"
	"github.com/teemow/inboxchat/internal/config"
	"github.com/teemow/inboxchat/internal/google"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/llm"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/store"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/common"
	"github.com/teemow/inboxchat/internal/tools/gmail_tools"
)

// app holds the lifecycle-scoped resources shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	instr    *instrumentation.Provider
	auth     *google.Authenticator
	sc       *server.ServerContext
	registry *tools.Registry
	model    llm.Model
	agent    *agent.Agent
	store    store.Store
}

type appOptions struct {
	// agent creates the model and the agent loop.
	agent bool
	// store opens the session store.
	store bool
}

func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := config.Resolve(cmd.Flags(), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger := logging.NewLogger(debug)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	instrConfig, err := instrumentation.ConfigFromEnv(os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("invalid instrumentation settings: %w", err)
	}
	instrConfig.ServiceVersion = version
	instrConfig.MetricsExporter = cfg.Metrics.Exporter
	a.instr, err = instrumentation.NewProvider(ctx, instrConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	a.auth, err = newAuthenticator(cfg)
	if err != nil {
		// Without a client the chat still works; Gmail tools report that
		// authorization is needed.
		logger.Warn("Google OAuth client not configured", logging.Err(err))
	}
	a.sc = server.NewServerContext(ctx, a.auth, a.instr.Metrics(), logger)

	a.registry = tools.NewRegistry(tools.WithInstruments(common.Instruments{
		Metrics: a.instr.Metrics(),
		Audit:   a.instr.Audit(),
	}))
	if err := gmail_tools.RegisterGmailTools(a.registry, a.sc, cfg.ReadOnly); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to register Gmail tools: %w", err)
	}

	if opts.agent {
		model, err := llm.New(ctx, llm.Config{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			Temperature: cfg.LLM.Temperature,
			BaseURL:     cfg.LLM.BaseURL,
			Logger:      logger,
		})
		if err != nil {
			a.close(ctx)
			if errors.Is(err, llm.ErrMissingAPIKey) {
				return nil, fmt.Errorf("%w: set --llm-api-key or %s", err, config.APIKeyEnv(cfg.LLM.Provider))
			}
			return nil, err
		}
		a.model = llm.Instrument(model, a.instr.Metrics(), logger)

		a.agent, err = agent.New(agent.Config{
			Model:         a.model,
			Tools:         a.registry,
			MaxIterations: cfg.MaxIterations,
			Metrics:       a.instr.Metrics(),
			Logger:        logger,
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	if opts.store {
		a.store, err = store.Open(ctx, cfg.StoreDSN, store.Options{Metrics: a.instr.Metrics(), Logger: logger})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		logger.Info("session store opened", logging.Backend(a.store.Backend()), "dsn", logging.RedactDSN(cfg.StoreDSN))
	}

	return a, nil
}

// newAuthenticator loads the OAuth client and token cache.
func newAuthenticator(cfg *config.Config) (*google.Authenticator, error) {
	oauthCfg, err := google.LoadConfig(cfg.Google.CredentialsFile, cfg.Google.RedirectURL, google.ScopesFor(cfg.ReadOnly))
	if err != nil {
		return nil, err
	}
	return google.NewAuthenticator(oauthCfg, google.NewTokenCache(cfg.Google.TokenFile)), nil
}

func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close session store", logging.Err(err))
		}
	}
	if a.model != nil {
		if err := llm.Close(a.model); err != nil {
			a.logger.Debug("failed to close model client", logging.Err(err))
		}
	}
	if a.sc != nil {
		_ = a.sc.Shutdown()
	}
	if a.instr != nil {
		if err := a.instr.Shutdown(ctx); err != nil {
			a.logger.Debug("instrumentation shutdown failed", logging.Err(err))
		}
	}
}
