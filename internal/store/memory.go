package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/teemow/inboxchat/internal/conversation"
)

// Memory keeps documents in process. Documents are stored as JSON so callers
// never share memory with the store.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
	sums map[string]conversation.Summary
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string][]byte),
		sums: make(map[string]conversation.Summary),
	}
}

func (m *Memory) Backend() string { return BackendMemory }

func (m *Memory) Save(ctx context.Context, doc *conversation.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.SessionID] = data
	m.sums[doc.SessionID] = doc.Summary()
	return nil
}

func (m *Memory) Get(ctx context.Context, sessionID string) (*conversation.Document, error) {
	m.mu.RLock()
	data, ok := m.docs[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	var doc conversation.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &doc, nil
}

func (m *Memory) List(ctx context.Context, limit int) ([]conversation.Summary, error) {
	m.mu.RLock()
	out := make([]conversation.Summary, 0, len(m.sums))
	for _, s := range m.sums {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func sortNewestFirst(sums []conversation.Summary) {
	sort.Slice(sums, func(i, j int) bool {
		if !sums[i].SessionStart.Equal(sums[j].SessionStart) {
			return sums[i].SessionStart.After(sums[j].SessionStart)
		}
		return sums[i].SessionID < sums[j].SessionID
	})
}
