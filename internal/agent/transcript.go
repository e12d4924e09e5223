package agent

import (
	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/llm"
)

// Messages converts a transcript into model messages. Assistant error
// notices are local to the UI and are not sent to the model.
func Messages(turns []conversation.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case conversation.RoleAssistant:
			if t.IsError {
				continue
			}
			m := llm.Message{Role: llm.RoleAssistant, Content: t.Content}
			for _, c := range t.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, llm.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
			}
			msgs = append(msgs, m)
		case conversation.RoleTool:
			if t.ToolCall == nil {
				continue
			}
			msgs = append(msgs, llm.Message{
				Role: llm.RoleTool,
				ToolResult: &llm.ToolResult{
					CallID:  t.ToolCall.ID,
					Name:    t.ToolCall.Name,
					Content: t.Content,
					IsError: t.IsError,
				},
			})
		}
	}
	return msgs
}
