package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/instrumentation"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

var (
	// ErrNotFound is returned by Get for unknown session ids.
	ErrNotFound = errors.New("session not found")

	// ErrUnsupportedDSN is returned by Open for unknown schemes.
	ErrUnsupportedDSN = errors.New("unsupported store DSN")
)

// Store persists session documents keyed by session id.
type Store interface {
	// Save inserts the document or replaces the one with the same id.
	Save(ctx context.Context, doc *conversation.Document) error
	// Get returns the stored document or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*conversation.Document, error)
	// List returns summaries, newest session first.
	List(ctx context.Context, limit int) ([]conversation.Summary, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Backend returns the backend name.
	Backend() string
	Close() error
}

// Options configures Open.
type Options struct {
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Open connects to the store named by dsn. An empty dsn opens the memory
// store. The returned store records save metrics and spans.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s, err := open(ctx, dsn, opts.Logger)
	if err != nil {
		return nil, err
	}
	return Instrument(s, opts.Metrics, opts.Logger), nil
}

func open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	scheme, rest := splitScheme(dsn)
	switch scheme {
	case "memory":
		return NewMemory(), nil
	case "":
		if dsn == "" {
			return NewMemory(), nil
		}
		return OpenSQLite(ctx, dsn, logger)
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, rest, logger)
	case "file":
		return OpenSQLite(ctx, dsn, logger)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn, logger)
	case "redis", "rediss":
		return OpenRedis(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedDSN, scheme)
	}
}

// splitScheme returns the lowercase scheme and the remainder after "://".
// A DSN without a scheme is treated as a SQLite path.
func splitScheme(dsn string) (string, string) {
	i := strings.Index(dsn, ":")
	if i <= 0 {
		return "", dsn
	}
	scheme := strings.ToLower(dsn[:i])
	rest := strings.TrimPrefix(dsn[i+1:], "//")
	return scheme, rest
}

// BackendName returns the backend Open would select for dsn, without
// connecting.
func BackendName(dsn string) string {
	scheme, _ := splitScheme(dsn)
	switch scheme {
	case "memory":
		return BackendMemory
	case "postgres", "postgresql":
		return BackendPostgres
	case "redis", "rediss":
		return BackendRedis
	case "":
		if dsn == "" {
			return BackendMemory
		}
		return BackendSQLite
	case "sqlite", "sqlite3", "file":
		return BackendSQLite
	default:
		return scheme
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
