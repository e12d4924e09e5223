package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	// DefaultHTTPAddr is the default address of the chat server.
	DefaultHTTPAddr = ":8080"

	// Model calls plus several Gmail round trips can take a while.
	defaultWriteTimeout = 3 * time.Minute
)

// Config wires a Server.
type Config struct {
	Manager *chat.Manager
	Store   store.Store
	Context *ServerContext
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger

	// ReadOnly is shown on the chat page when mutating tools are disabled.
	ReadOnly bool

	// BaseURL is the public URL of the server. When it is https, cookies
	// are marked Secure.
	BaseURL string

	// SecureCookies marks cookies Secure.
	SecureCookies bool

	Version string
}

// Server is the web chat: an HTML page, a JSON API, a websocket and the
// Google sign-in flow.
type Server struct {
	cfg        Config
	router     chi.Router
	health     *HealthChecker
	page       *template.Template
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("chat manager is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Context == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseURL != "" {
		secure, err := validateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		cfg.SecureCookies = cfg.SecureCookies || secure
	}

	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		health: NewHealthChecker(cfg.Context, cfg.Store),
		page:   page,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: cfg.Logger,
	}
	s.health.sessions = cfg.Manager.Len
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestMetrics)

	s.health.RegisterHealthEndpoints(r)

	r.Get("/auth/login", s.handleLogin)
	r.Get("/auth/callback", s.handleCallback)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.clientKey)

		r.Get("/", s.handleIndex)
		r.Get("/ws", s.handleWebsocket)

		r.Route("/api", func(r chi.Router) {
			r.Post("/messages", s.handleMessage)
			r.Get("/session", s.handleSession)
			r.Post("/session/end", s.handleEndSession)
			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{id}", s.handleGetSession)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting chat server", "addr", addr, "version", s.cfg.Version)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, saves open conversations and releases
// the server context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	s.cfg.Manager.Stop()
	if err := s.cfg.Manager.SaveAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("saving open sessions: %w", err))
	}
	if err := s.cfg.Context.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
