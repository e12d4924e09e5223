package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/inboxchat/internal/agent"
	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/store"
)

// AuthNotice is shown next to replies whose tool calls need the user to sign
// in to Google again.
const AuthNotice = "Your Google authorization has expired or was revoked. Please re-authenticate to continue using Gmail."

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Runner runs one user message against a session.
type Runner interface {
	Run(ctx context.Context, sess *conversation.Session, input string, observe agent.Observer) (*agent.Reply, error)
}

// Conversation is one client's chat. Messages are processed one at a time.
type Conversation struct {
	key    string
	runner Runner
	store  store.Store
	now    func() time.Time
	logger *slog.Logger

	// mu serialises Send and End. session is replaced only under mu but
	// may be read without it.
	mu      sync.Mutex
	session atomic.Pointer[conversation.Session]

	// closed is set under mu once the manager has dropped the conversation.
	// successor then returns the conversation that now owns the key.
	closed    atomic.Bool
	successor func() *Conversation

	activeMu   sync.Mutex
	lastActive time.Time
}

// Snapshot is a read-only view of the open session.
type Snapshot struct {
	SessionID    string              `json:"session_id"`
	StartedAt    time.Time           `json:"session_start"`
	MessageCount int                 `json:"message_count"`
	Turns        []conversation.Turn `json:"-"`
}

// EndResult describes an ended session.
type EndResult struct {
	// SessionID is the id of the saved session.
	SessionID string `json:"session_id"`
	// Saved is false when the session had no turns and nothing was written.
	Saved         bool   `json:"saved"`
	TotalMessages int    `json:"total_messages"`
	Duration      string `json:"session_duration,omitempty"`
	// NextSessionID is the id of the fresh session.
	NextSessionID string `json:"next_session_id"`
}

func newConversation(key string, runner Runner, st store.Store, now func() time.Time, logger *slog.Logger) *Conversation {
	c := &Conversation{
		key:    key,
		runner: runner,
		store:  st,
		now:    now,
		logger: logger,
	}
	c.session.Store(c.newSession())
	c.touch()
	return c
}

func (c *Conversation) newSession() *conversation.Session {
	return conversation.NewSession(conversation.WithClock(c.now))
}

// Key returns the client key the conversation belongs to.
func (c *Conversation) Key() string { return c.key }

// Send runs one user message to completion. On model failure or iteration
// limit the reply still carries the error notice that was added to the
// transcript.
func (c *Conversation) Send(ctx context.Context, text string, observe agent.Observer) (*agent.Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	c = c.lockLive()
	defer c.mu.Unlock()
	defer c.touch()

	return c.runner.Run(ctx, c.session.Load(), text, observe)
}

// End saves the open session and replaces it with a fresh one. Empty
// sessions are not written. When the save fails the session stays open and
// the error is returned.
func (c *Conversation) End(ctx context.Context) (*EndResult, error) {
	c = c.lockLive()
	defer c.mu.Unlock()
	defer c.touch()

	return c.end(ctx)
}

// lockLive locks and returns c, or the conversation that replaced it when
// the manager dropped c while the caller was waiting.
func (c *Conversation) lockLive() *Conversation {
	for {
		c.mu.Lock()
		if !c.closed.Load() || c.successor == nil {
			return c
		}
		next := c.successor
		c.mu.Unlock()
		c = next()
	}
}

func (c *Conversation) end(ctx context.Context) (*EndResult, error) {
	sess := c.session.Load()
	res := &EndResult{SessionID: sess.ID(), TotalMessages: sess.Len()}

	if sess.Len() > 0 {
		end := c.now()
		doc := sess.Document(end)
		if err := c.store.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to save session %s: %w", sess.ID(), err)
		}
		if err := sess.Close(end); err != nil {
			return nil, err
		}
		res.Saved = true
		res.Duration = doc.Duration
	}

	next := c.newSession()
	c.session.Store(next)
	res.NextSessionID = next.ID()
	c.logger.Info("session ended",
		logging.Session(res.SessionID),
		slog.Bool("saved", res.Saved),
		slog.Int("total_messages", res.TotalMessages),
	)
	return res, nil
}

// live returns c, or the conversation that replaced it.
func (c *Conversation) live() *Conversation {
	for c.closed.Load() && c.successor != nil {
		c = c.successor()
	}
	return c
}

// Snapshot returns the open session's id and turns.
func (c *Conversation) Snapshot() Snapshot {
	sess := c.live().session.Load()
	turns := sess.Turns()
	return Snapshot{
		SessionID:    sess.ID(),
		StartedAt:    sess.StartedAt(),
		MessageCount: len(turns),
		Turns:        turns,
	}
}

// SessionID returns the id of the open session.
func (c *Conversation) SessionID() string {
	return c.live().session.Load().ID()
}

func (c *Conversation) touch() {
	c.activeMu.Lock()
	c.lastActive = c.now()
	c.activeMu.Unlock()
}

// LastActive returns when the conversation last handled a request.
func (c *Conversation) LastActive() time.Time {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return c.lastActive
}
