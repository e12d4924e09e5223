package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/inboxchat/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default listen address of the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultShutdownTimeout bounds graceful shutdown of the chat and
	// metrics servers, including saving open sessions.
	DefaultShutdownTimeout = 30 * time.Second

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 30 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

var errMetricsNotPrometheus = errors.New("metrics exporter is not prometheus")

// MetricsServerConfig configures the metrics listener.
type MetricsServerConfig struct {
	Addr string

	// Enabled is false when --metrics-enabled=false; NewMetricsServer still
	// validates the provider so misconfiguration shows up early.
	Enabled bool

	InstrumentationProvider *instrumentation.Provider

	// Profiling mounts the net/http/pprof handlers under /debug.
	Profiling bool

	Logger *slog.Logger
}

// MetricsServer serves Prometheus scrapes on a port separate from the chat,
// so session traffic and operational data never share a listener.
type MetricsServer struct {
	addr       string
	router     chi.Router
	logger     *slog.Logger
	httpServer *http.Server
}

// NewMetricsServer builds the metrics router. The provider must be enabled
// and use the Prometheus exporter.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	provider := config.InstrumentationProvider
	switch {
	case provider == nil:
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	case !provider.Enabled():
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}

	scrape := provider.MetricsHandler()
	if scrape == nil {
		return nil, errMetricsNotPrometheus
	}

	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Method(http.MethodGet, "/metrics", scrape)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if config.Profiling {
		r.Mount("/debug", chimw.Profiler())
	}

	return &MetricsServer{
		addr:   config.Addr,
		router: r,
		logger: logger.With("component", "metrics"),
	}, nil
}

// Handler returns the metrics router.
func (s *MetricsServer) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called. It blocks.
func (s *MetricsServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       metricsIdleTimeout,
	}

	s.logger.Info("starting metrics server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the listener. It is a no-op before Start.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listen address.
func (s *MetricsServer) Addr() string {
	return s.addr
}
