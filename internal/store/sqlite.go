package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/teemow/inboxchat/internal/conversation"
)

// SQLite stores sessions in a local SQLite database.
type SQLite struct {
	db *sqlx.DB
}

type sessionRow struct {
	SessionID     string `db:"session_id"`
	SessionStart  string `db:"session_start"`
	SessionEnd    string `db:"session_end"`
	TotalMessages int    `db:"total_messages"`
	Status        string `db:"status"`
}

// OpenSQLite opens (or creates) the database at path and applies pending
// migrations. path may be a file: URI.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", ErrUnsupportedDSN)
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", withPragmas(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db.DB, goose.DialectSQLite3, "sqlite", logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite session store ready", slog.String("path", path))
	return &SQLite{db: db}, nil
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *SQLite) Backend() string { return BackendSQLite }

func (s *SQLite) Save(ctx context.Context, doc *conversation.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, session_start, session_end, total_messages, status, document, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			session_start = excluded.session_start,
			session_end = excluded.session_end,
			total_messages = excluded.total_messages,
			status = excluded.status,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		doc.SessionID,
		formatTime(doc.SessionStart),
		formatTime(doc.SessionEnd),
		doc.TotalMessages,
		doc.Status,
		string(data),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", doc.SessionID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, sessionID string) (*conversation.Document, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT document FROM sessions WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	var doc conversation.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &doc, nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]conversation.Summary, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT session_id, session_start, session_end, total_messages, status
		FROM sessions
		ORDER BY session_start DESC, session_id ASC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	out := make([]conversation.Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, conversation.Summary{
			SessionID:     r.SessionID,
			SessionStart:  parseTime(r.SessionStart),
			SessionEnd:    parseTime(r.SessionEnd),
			TotalMessages: r.TotalMessages,
			Status:        r.Status,
		})
	}
	return out, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
