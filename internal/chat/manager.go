package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/store"
)

// DefaultIdleTimeout is how long a conversation may stay idle before the
// sweeper saves and drops it.
const DefaultIdleTimeout = 2 * time.Hour

// Config wires a Manager.
type Config struct {
	Runner Runner
	Store  store.Store

	// IdleTimeout defaults to DefaultIdleTimeout. A negative value disables
	// expiry.
	IdleTimeout time.Duration

	// SweepInterval is how often idle conversations are checked. Defaults
	// to 10 minutes.
	SweepInterval time.Duration

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger

	// Now replaces time.Now.
	Now func() time.Time
}

// Manager owns the conversations of all clients.
type Manager struct {
	runner        Runner
	store         store.Store
	idleTimeout   time.Duration
	sweepInterval time.Duration
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
	now           func() time.Time

	mu    sync.RWMutex
	convs map[string]*Conversation

	sweepTicker *time.Ticker
	sweepDone   chan struct{}
	stopOnce    sync.Once
}

// NewManager creates a manager. Call Start to run the idle sweeper and Stop
// to end it.
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		runner:        cfg.Runner,
		store:         cfg.Store,
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: cfg.SweepInterval,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           cfg.Now,
		convs:         make(map[string]*Conversation),
		sweepDone:     make(chan struct{}),
	}
}

// Conversation returns the conversation for key, creating it on first use.
func (m *Manager) Conversation(key string) *Conversation {
	m.mu.RLock()
	c, ok := m.convs[key]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[key]; ok {
		return c
	}
	c = newConversation(key, m.runner, m.store, m.now, logging.WithSession(m.logger, key))
	c.successor = func() *Conversation { return m.Conversation(key) }
	m.convs[key] = c
	m.metrics.IncrementActiveSessions(context.Background())
	m.logger.Debug("conversation started", slog.String("client", key), logging.Session(c.SessionID()))
	return c
}

// Lookup returns the conversation for key without creating one.
func (m *Manager) Lookup(key string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[key]
	return c, ok
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs)
}

// Start runs the idle sweeper until Stop is called. It does nothing when
// expiry is disabled.
func (m *Manager) Start() {
	if m.idleTimeout < 0 {
		return
	}
	m.sweepTicker = time.NewTicker(m.sweepInterval)
	go m.sweepLoop()
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.sweepTicker.C:
			if n := m.Sweep(context.Background()); n > 0 {
				m.logger.Info("Expired idle conversations", "count", n)
			}
		case <-m.sweepDone:
			return
		}
	}
}

// Sweep saves and drops conversations idle for longer than the idle
// timeout. Conversations whose save fails are kept. It returns the number
// dropped.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.idleTimeout < 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	var idle []*Conversation
	for _, c := range m.convs {
		if c.LastActive().Before(cutoff) {
			idle = append(idle, c)
		}
	}
	m.mu.RUnlock()

	dropped := 0
	for _, c := range idle {
		ok, err := m.close(ctx, c, cutoff)
		if err != nil {
			m.logger.Warn("failed to save idle conversation", slog.String("client", c.Key()), logging.Err(err))
			continue
		}
		if ok {
			dropped++
		}
	}
	return dropped
}

// close saves c and removes it from the manager. With a non-zero cutoff c
// is left alone if it handled a request at or after cutoff while close
// waited for it. close reports whether c was dropped.
func (m *Manager) close(ctx context.Context, c *Conversation, cutoff time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return false, nil
	}
	if !cutoff.IsZero() && !c.LastActive().Before(cutoff) {
		return false, nil
	}
	if _, err := c.end(ctx); err != nil {
		return false, err
	}

	// Callers already waiting on c.mu are handed to a fresh conversation.
	// closed flips together with the map entry so successor never returns c.
	m.mu.Lock()
	c.closed.Store(true)
	if m.convs[c.key] == c {
		delete(m.convs, c.key)
		m.metrics.DecrementActiveSessions(ctx)
	}
	m.mu.Unlock()
	return true, nil
}

// SaveAll saves every open, non-empty conversation and drops them all. It is
// used on shutdown.
func (m *Manager) SaveAll(ctx context.Context) error {
	m.mu.RLock()
	all := make([]*Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		all = append(all, c)
	}
	m.mu.RUnlock()

	var errs []error
	for _, c := range all {
		if _, err := m.close(ctx, c, time.Time{}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(all) > 0 {
		m.logger.Info("Saved open conversations", "count", len(all)-len(errs), "failed", len(errs))
	}
	return errors.Join(errs...)
}

// Stop ends the idle sweeper.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.sweepTicker != nil {
			m.sweepTicker.Stop()
		}
		close(m.sweepDone)
	})
}
