package llm

import "encoding/json"

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the transcript sent to a model.
type Message struct {
	Role    Role
	Content string

	// ToolCalls holds the calls an assistant message requested.
	ToolCalls []ToolCall

	// ToolResult holds the outcome of a call, for tool messages.
	ToolResult *ToolResult
}

// ToolCall is a request by the model to run a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"args"`
}

// ToolResult is the outcome of a ToolCall fed back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// ToolDefinition describes a callable tool. Parameters is a JSON object
// schema.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is a single reasoning step.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Reply is either a FinalAnswer or a ToolRequest.
type Reply interface {
	isReply()
}

// FinalAnswer ends the reasoning loop with text for the user.
type FinalAnswer struct {
	Text string
}

// ToolRequest asks for one or more tool calls before the model continues.
// Text carries any commentary the model produced alongside the calls.
type ToolRequest struct {
	Text  string
	Calls []ToolCall
}

func (FinalAnswer) isReply() {}
func (ToolRequest) isReply() {}

// replyFrom builds the reply for a model response with the given text and
// calls.
func replyFrom(text string, calls []ToolCall) Reply {
	if len(calls) > 0 {
		return ToolRequest{Text: text, Calls: calls}
	}
	return FinalAnswer{Text: text}
}

// decodeArguments parses a JSON argument object. An empty input yields an
// empty map.
func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// resultPayload renders a tool result as a JSON object for providers that
// need structured responses.
func resultPayload(r *ToolResult) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(r.Content), &obj); err != nil || obj == nil {
		obj = map[string]any{"content": r.Content}
	}
	if r.IsError {
		obj["is_error"] = true
	}
	return obj
}
