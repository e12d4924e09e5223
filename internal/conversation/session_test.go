package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(time.Second)
		return t
	}
}

func TestSessionAppendOrder(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession(WithClock(fixedClock(start)))
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, start, s.StartedAt())

	_, err := s.AppendUser("show unread")
	require.NoError(t, err)
	_, err = s.AppendAssistant("", []ToolCall{{ID: "c1", Name: "gmail_get_unread_emails", Arguments: map[string]any{"max_results": 5.0}}})
	require.NoError(t, err)
	_, err = s.AppendToolResult(ToolCall{ID: "c1", Name: "gmail_get_unread_emails", Result: `{"count":0}`})
	require.NoError(t, err)
	last, err := s.AppendAssistant("No unread mail.", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, last.Position)
	turns := s.Turns()
	require.Len(t, turns, 4)
	for i, turn := range turns {
		assert.Equal(t, i, turn.Position)
		if i > 0 {
			assert.True(t, turn.Timestamp.After(turns[i-1].Timestamp))
		}
	}
	assert.Equal(t, RoleTool, turns[2].Role)
	require.NotNil(t, turns[2].ToolCall)
	assert.Equal(t, "c1", turns[2].ToolCall.ID)
	assert.Equal(t, `{"count":0}`, turns[2].Content)
}

func TestSessionClose(t *testing.T) {
	s := NewSession(WithID("fixed"))
	assert.Equal(t, "fixed", s.ID())
	assert.False(t, s.Closed())
	assert.True(t, s.EndedAt().IsZero())

	end := time.Now()
	require.NoError(t, s.Close(end))
	assert.True(t, s.Closed())
	assert.Equal(t, end.UTC(), s.EndedAt())

	assert.ErrorIs(t, s.Close(end.Add(time.Hour)), ErrSessionClosed)
	assert.Equal(t, end.UTC(), s.EndedAt())

	_, err := s.AppendUser("late")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 0, s.Len())
}

func TestSessionDocument(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession(WithID("sess-1"), WithClock(fixedClock(start)))

	_, _ = s.AppendUser("reply to alice")
	_, _ = s.AppendAssistant("Looking.", []ToolCall{{ID: "c1", Name: "gmail_reply_to_email", Arguments: map[string]any{"message_id": "m1"}}})
	_, _ = s.AppendToolResult(ToolCall{ID: "c1", Name: "gmail_reply_to_email", Result: "auth failed", IsError: true})
	_, _ = s.AppendAssistantError("model unavailable")
	_, _ = s.AppendUser("thanks")

	doc := s.Document(start.Add(time.Minute))
	require.NoError(t, doc.Validate())

	assert.Equal(t, "sess-1", doc.SessionID)
	assert.Equal(t, 5, doc.TotalMessages)
	assert.Equal(t, []string{"reply to alice", "thanks"}, doc.UserInputs)
	assert.Equal(t, "1m0s", doc.Duration)
	assert.Equal(t, StatusCompleted, doc.Status)

	require.Len(t, doc.History, 5)
	assert.Equal(t, TypeHuman, doc.History[0].Type)
	assert.Equal(t, TypeAI, doc.History[1].Type)
	assert.Equal(t, []DocumentToolCall{{Name: "gmail_reply_to_email", Args: map[string]any{"message_id": "m1"}, ID: "c1"}}, doc.History[1].ToolCalls)
	assert.Equal(t, TypeTool, doc.History[2].Type)
	assert.Equal(t, "gmail_reply_to_email", doc.History[2].ToolName)
	assert.Equal(t, "c1", doc.History[2].ToolCallID)
	assert.True(t, doc.History[2].IsError)
	assert.True(t, doc.History[3].IsError)

	sum := doc.Summary()
	assert.Equal(t, "sess-1", sum.SessionID)
	assert.Equal(t, 5, sum.TotalMessages)
}

func TestDocumentValidate(t *testing.T) {
	var nilDoc *Document
	assert.ErrorIs(t, nilDoc.Validate(), ErrMissingSessionID)
	assert.ErrorIs(t, (&Document{}).Validate(), ErrMissingSessionID)
}
