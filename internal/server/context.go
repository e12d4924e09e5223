package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/inboxchat/internal/gmail"
	"github.com/teemow/inboxchat/internal/google"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

// ServerContext holds the lifecycle-scoped resources shared by the chat
// surfaces: the Google authenticator and the lazily created Gmail client.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	auth     *google.Authenticator
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
	mu       sync.RWMutex
	mailbox  gmail.Mailbox
	shutdown bool
}

// NewServerContext creates a server context. The Gmail client is created on
// first use so the process can start before the user has signed in.
func NewServerContext(ctx context.Context, auth *google.Authenticator, metrics *instrumentation.Metrics, logger *slog.Logger) *ServerContext {
	if logger == nil {
		logger = slog.Default()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		auth:    auth,
		metrics: metrics,
		logger:  logger,
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Authenticator returns the Google authenticator, which may be nil when no
// OAuth client is configured.
func (sc *ServerContext) Authenticator() *google.Authenticator {
	return sc.auth
}

// Metrics returns the metrics recorder.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// HasToken reports whether a Google token is cached.
func (sc *ServerContext) HasToken() bool {
	return sc.auth != nil && sc.auth.HasToken()
}

// Mailbox returns the Gmail mailbox, creating and caching the client on
// first use. It fails with gmail.ErrAuthRequired when no token is cached.
func (sc *ServerContext) Mailbox(ctx context.Context) (gmail.Mailbox, error) {
	sc.mu.RLock()
	mb := sc.mailbox
	sc.mu.RUnlock()
	if mb != nil {
		return mb, nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.mailbox != nil {
		return sc.mailbox, nil
	}
	if sc.shutdown {
		return nil, fmt.Errorf("server is shutting down")
	}
	if sc.auth == nil {
		return nil, fmt.Errorf("%w: no Google OAuth client configured", gmail.ErrAuthRequired)
	}

	hc, err := sc.auth.HTTPClient(sc.ctx)
	if err != nil {
		if errors.Is(err, google.ErrNoToken) {
			return nil, fmt.Errorf("%w: %v", gmail.ErrAuthRequired, err)
		}
		return nil, err
	}
	client, err := gmail.NewFromHTTPClient(sc.ctx, hc, sc.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}

	sc.logger.Debug("Gmail client created")
	sc.mailbox = client
	return client, nil
}

// SetMailbox replaces the cached mailbox.
func (sc *ServerContext) SetMailbox(mb gmail.Mailbox) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.mailbox = mb
}

// ResetMailbox drops the cached client so the next call re-reads the token.
func (sc *ServerContext) ResetMailbox() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.mailbox != nil {
		sc.logger.Info("Dropping cached Gmail client", logging.Operation("reset_mailbox"))
	}
	sc.mailbox = nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.mailbox = nil
	sc.cancel()
	return nil
}
