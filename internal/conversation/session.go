package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionClosed is returned when appending to or closing a session that
// has already been closed.
var ErrSessionClosed = errors.New("session is closed")

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model. Result and
// IsError are filled in on the tool turn that carries the outcome.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	Result    string
	IsError   bool
}

// Turn is one entry of the transcript.
type Turn struct {
	Position  int
	Role      Role
	Content   string
	Timestamp time.Time

	// ToolCalls lists the calls an assistant turn requested.
	ToolCalls []ToolCall

	// ToolCall is set on tool turns.
	ToolCall *ToolCall

	// IsError marks failed tool calls and assistant error notices.
	IsError bool
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the transcript of one continuous user interaction. It is safe
// for concurrent use.
type Session struct {
	mu        sync.RWMutex
	id        string
	startedAt time.Time
	endedAt   time.Time
	turns     []Turn
	now       func() time.Time
}

// NewSession starts a session with a fresh id.
func NewSession(opts ...Option) *Session {
	s := &Session{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.startedAt = s.now().UTC()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) StartedAt() time.Time { return s.startedAt }

// EndedAt returns the close time, or the zero time while the session is open.
func (s *Session) EndedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endedAt
}

// Closed reports whether Close has succeeded.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.endedAt.IsZero()
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.turns...)
}

// AppendUser records a user message.
func (s *Session) AppendUser(content string) (Turn, error) {
	return s.append(Turn{Role: RoleUser, Content: content})
}

// AppendAssistant records model output and any tool calls it requested.
func (s *Session) AppendAssistant(content string, calls []ToolCall) (Turn, error) {
	return s.append(Turn{Role: RoleAssistant, Content: content, ToolCalls: append([]ToolCall(nil), calls...)})
}

// AppendAssistantError records an error notice shown in place of an answer.
func (s *Session) AppendAssistantError(content string) (Turn, error) {
	return s.append(Turn{Role: RoleAssistant, Content: content, IsError: true})
}

// AppendToolResult records the outcome of a tool call.
func (s *Session) AppendToolResult(call ToolCall) (Turn, error) {
	c := call
	return s.append(Turn{Role: RoleTool, Content: call.Result, ToolCall: &c, IsError: call.IsError})
}

func (s *Session) append(t Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endedAt.IsZero() {
		return Turn{}, ErrSessionClosed
	}
	t.Position = len(s.turns)
	t.Timestamp = s.now().UTC()
	s.turns = append(s.turns, t)
	return t, nil
}

// Close sets the end timestamp. It fails if the session is already closed so
// the timestamp is never revised.
func (s *Session) Close(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endedAt.IsZero() {
		return ErrSessionClosed
	}
	s.endedAt = at.UTC()
	return nil
}

// Document renders the session as it would be stored if it ended at end.
func (s *Session) Document(end time.Time) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end = end.UTC()
	doc := &Document{
		SessionID:     s.id,
		SessionStart:  s.startedAt,
		SessionEnd:    end,
		TotalMessages: len(s.turns),
		UserInputs:    []string{},
		History:       make([]HistoryEntry, 0, len(s.turns)),
		Duration:      end.Sub(s.startedAt).String(),
		Status:        StatusCompleted,
	}

	for _, t := range s.turns {
		entry := HistoryEntry{
			Content:   t.Content,
			Timestamp: t.Timestamp,
			IsError:   t.IsError,
		}
		switch t.Role {
		case RoleUser:
			entry.Type = TypeHuman
			doc.UserInputs = append(doc.UserInputs, t.Content)
		case RoleAssistant:
			entry.Type = TypeAI
			for _, c := range t.ToolCalls {
				entry.ToolCalls = append(entry.ToolCalls, DocumentToolCall{Name: c.Name, Args: c.Arguments, ID: c.ID})
			}
		case RoleTool:
			entry.Type = TypeTool
			if t.ToolCall != nil {
				entry.ToolName = t.ToolCall.Name
				entry.ToolCallID = t.ToolCall.ID
			}
		}
		doc.History = append(doc.History, entry)
	}
	return doc
}
