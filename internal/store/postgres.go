package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/logging"
)

// Postgres stores sessions in PostgreSQL, one jsonb document per row.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	logger.Info("Initializing PostgreSQL connection pool", slog.String("dsn", logging.RedactDSN(dsn)))

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres", logger)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("PostgreSQL connection established successfully")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Backend() string { return BackendPostgres }

func (p *Postgres) Save(ctx context.Context, doc *conversation.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, session_start, session_end, total_messages, status, document, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			session_start = EXCLUDED.session_start,
			session_end = EXCLUDED.session_end,
			total_messages = EXCLUDED.total_messages,
			status = EXCLUDED.status,
			document = EXCLUDED.document,
			updated_at = NOW()`,
		doc.SessionID, doc.SessionStart, doc.SessionEnd, doc.TotalMessages, doc.Status, data,
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", doc.SessionID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, sessionID string) (*conversation.Document, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT document FROM sessions WHERE session_id = $1`, sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	var doc conversation.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &doc, nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]conversation.Summary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT session_id, session_start, session_end, total_messages, status
		FROM sessions
		ORDER BY session_start DESC, session_id ASC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	out := []conversation.Summary{}
	for rows.Next() {
		var s conversation.Summary
		if err := rows.Scan(&s.SessionID, &s.SessionStart, &s.SessionEnd, &s.TotalMessages, &s.Status); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		s.SessionStart = s.SessionStart.UTC()
		s.SessionEnd = s.SessionEnd.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
