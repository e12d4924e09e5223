package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/logging"
)

const (
	redisKeyPrefix = "inboxchat:session:"
	redisIndexKey  = "inboxchat:sessions"
)

// Redis stores each session as a JSON string and indexes ids in a sorted
// set scored by start time.
type Redis struct {
	rdb *redis.Client
}

// OpenRedis connects to the Redis server named by a redis:// or rediss://
// URL.
func OpenRedis(ctx context.Context, dsn string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis session store ready", slog.String("dsn", logging.RedactDSN(dsn)))
	return &Redis{rdb: rdb}, nil
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (r *Redis) Backend() string { return BackendRedis }

func (r *Redis) Save(ctx context.Context, doc *conversation.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(doc.SessionID), data, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(doc.SessionStart.UnixMilli()),
			Member: doc.SessionID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", doc.SessionID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, sessionID string) (*conversation.Document, error) {
	data, err := r.rdb.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
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

func (r *Redis) List(ctx context.Context, limit int) ([]conversation.Summary, error) {
	ids, err := r.rdb.ZRevRange(ctx, redisIndexKey, 0, int64(clampLimit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if len(ids) == 0 {
		return []conversation.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	out := make([]conversation.Summary, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var doc conversation.Document
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", ids[i], err)
		}
		out = append(out, doc.Summary())
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
