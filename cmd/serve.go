package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
)

func newServeCmd() *cobra.Command {
	var metricsEnabled, profiling bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web chat server",
		Long: `Start the web chat. Open the server address in a browser, connect your
Google account and ask about your inbox.

Conversations are saved to the session store when you press
"End & save session", when they have been idle for --session-idle, and when
the server shuts down.

Use --read-only to disable the tools that send, reply, label or trash mail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				metricsEnabled = false
			}
			if !cmd.Flags().Changed("metrics-profiling") && os.Getenv("METRICS_PROFILING") == "true" {
				profiling = true
			}
			return runServe(cmd, metricsEnabled, profiling)
		},
	}

	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().BoolVar(&profiling, "metrics-profiling", false, "Serve pprof under /debug on the metrics port. Can also use METRICS_PROFILING env var.")

	return cmd
}

func runServe(cmd *cobra.Command, metricsEnabled, profiling bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(shutdownCtx, cmd, appOptions{agent: true, store: true})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(shutdownCtx))

	if a.cfg.ReadOnly {
		a.logger.Info("starting in READ-ONLY mode: sending and modifying mail is disabled")
	}

	var metricsServer *server.MetricsServer
	if metricsEnabled && a.instr.Enabled() && a.cfg.Metrics.Exporter == instrumentation.ExporterPrometheus {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    a.cfg.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: a.instr,
			Profiling:               profiling,
			Logger:                  a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				a.logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	idle := a.cfg.SessionIdle
	if idle == 0 {
		idle = -1
	}
	manager := chat.NewManager(chat.Config{
		Runner:      a.agent,
		Store:       a.store,
		IdleTimeout: idle,
		Metrics:     a.instr.Metrics(),
		Logger:      a.logger,
	})
	manager.Start()

	srv, err := server.New(server.Config{
		Manager:  manager,
		Store:    a.store,
		Context:  a.sc,
		Metrics:  a.instr.Metrics(),
		Logger:   a.logger,
		ReadOnly: a.cfg.ReadOnly,
		BaseURL:  a.cfg.BaseURL,
		Version:  version,
	})
	if err != nil {
		manager.Stop()
		return err
	}

	if !a.sc.HasToken() {
		a.logger.Info("no Google token cached; open the chat page and connect your account",
			"login", loginURL(a.cfg.HTTPAddr, a.cfg.BaseURL))
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		a.logger.Info("shutdown signal received, saving open sessions")
	case err := <-serverDone:
		if err != nil {
			manager.Stop()
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down chat server: %w", err)
	}
	a.logger.Info("chat server stopped")
	return nil
}

func loginURL(addr, baseURL string) string {
	if baseURL != "" {
		return baseURL + "/auth/login"
	}
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr + "/auth/login"
	}
	return "http://" + addr + "/auth/login"
}
