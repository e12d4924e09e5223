package server

import (
	"time"

	"github.com/teemow/inboxchat/internal/agent"
	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/conversation"
)

// TurnView is the JSON and template form of a transcript turn.
type TurnView struct {
	Position  int       `json:"position"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolCalls []string  `json:"tool_calls,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func turnView(t conversation.Turn) TurnView {
	v := TurnView{
		Position:  t.Position,
		Role:      string(t.Role),
		Content:   t.Content,
		IsError:   t.IsError,
		Timestamp: t.Timestamp,
	}
	if t.ToolCall != nil {
		v.ToolName = t.ToolCall.Name
	}
	for _, c := range t.ToolCalls {
		v.ToolCalls = append(v.ToolCalls, c.Name)
	}
	return v
}

func turnViews(turns []conversation.Turn) []TurnView {
	out := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnView(t))
	}
	return out
}

// SessionView is the sidebar data for the open session.
type SessionView struct {
	SessionID    string     `json:"session_id"`
	StartedAt    time.Time  `json:"session_start"`
	MessageCount int        `json:"message_count"`
	Turns        []TurnView `json:"turns"`
}

func sessionView(snap chat.Snapshot) SessionView {
	return SessionView{
		SessionID:    snap.SessionID,
		StartedAt:    snap.StartedAt,
		MessageCount: snap.MessageCount,
		Turns:        turnViews(snap.Turns),
	}
}

// MessageResponse answers a user message.
type MessageResponse struct {
	SessionID    string     `json:"session_id"`
	Reply        string     `json:"reply"`
	AuthRequired bool       `json:"auth_required,omitempty"`
	Notice       string     `json:"notice,omitempty"`
	Error        string     `json:"error,omitempty"`
	MessageCount int        `json:"message_count"`
	Turns        []TurnView `json:"turns"`
}

func messageResponse(c *chat.Conversation, reply *agent.Reply, err error) MessageResponse {
	resp := MessageResponse{SessionID: c.SessionID(), Turns: []TurnView{}}
	if reply != nil {
		resp.Reply = reply.Text
		resp.AuthRequired = reply.AuthRequired
		resp.Turns = turnViews(reply.Turns)
	}
	if resp.AuthRequired {
		resp.Notice = chat.AuthNotice
	}
	if err != nil {
		resp.Error = err.Error()
	}
	resp.MessageCount = c.Snapshot().MessageCount
	return resp
}

// EndResponse answers an end-session request.
type EndResponse struct {
	*chat.EndResult
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

const saveWarning = "The session could not be saved. Your conversation is kept; you can keep chatting or try again."
