package conversation

import (
	"errors"
	"time"
)

// StatusCompleted marks a session that was ended and saved.
const StatusCompleted = "completed"

// Entry types used in the stored history.
const (
	TypeHuman = "human"
	TypeAI    = "ai"
	TypeTool  = "tool"
)

// ErrMissingSessionID is returned by Validate for documents without an id.
var ErrMissingSessionID = errors.New("session document has no session_id")

// Document is the persisted form of a session.
type Document struct {
	SessionID     string         `json:"session_id"`
	SessionStart  time.Time      `json:"session_start"`
	SessionEnd    time.Time      `json:"session_end"`
	TotalMessages int            `json:"total_messages"`
	UserInputs    []string       `json:"user_inputs"`
	History       []HistoryEntry `json:"conversation_history"`
	Duration      string         `json:"session_duration"`
	Status        string         `json:"status"`
}

// HistoryEntry is one turn of a stored session.
type HistoryEntry struct {
	Type       string             `json:"type"`
	Content    string             `json:"content"`
	Timestamp  time.Time          `json:"timestamp"`
	ToolCalls  []DocumentToolCall `json:"tool_calls,omitempty"`
	ToolName   string             `json:"tool_name,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	IsError    bool               `json:"is_error,omitempty"`
}

// DocumentToolCall is a tool call requested by an AI turn.
type DocumentToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
}

// Summary is the listing view of a stored session.
type Summary struct {
	SessionID     string    `json:"session_id"`
	SessionStart  time.Time `json:"session_start"`
	SessionEnd    time.Time `json:"session_end"`
	TotalMessages int       `json:"total_messages"`
	Status        string    `json:"status"`
}

// Validate checks the fields every store relies on.
func (d *Document) Validate() error {
	if d == nil || d.SessionID == "" {
		return ErrMissingSessionID
	}
	return nil
}

// Summary returns the listing view of d.
func (d *Document) Summary() Summary {
	return Summary{
		SessionID:     d.SessionID,
		SessionStart:  d.SessionStart,
		SessionEnd:    d.SessionEnd,
		TotalMessages: d.TotalMessages,
		Status:        d.Status,
	}
}
