package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchTool = ToolDefinition{
	Name:        "gmail_search_emails",
	Description: "Search emails",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
}

func transcript() []Message {
	return []Message{
		{Role: RoleUser, Content: "find unread mail"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "gmail_search_emails", Arguments: map[string]any{"query": "is:unread"}}}},
		{Role: RoleTool, ToolResult: &ToolResult{CallID: "call_1", Name: "gmail_search_emails", Content: `{"count":0}`}},
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_2", "type": "function", "function": {"name": "gmail_get_email_body", "arguments": "{\"message_id\":\"m1\"}"}}]
			}}]
		}`))
	}))
	defer srv.Close()

	m := NewOpenAI(Config{APIKey: "test-key", Provider: ProviderOpenAI, Temperature: 0.3, BaseURL: srv.URL + "/"})
	assert.Equal(t, DefaultOpenAIModel, m.Name())

	reply, err := m.Generate(context.Background(), &Request{System: "be helpful", Messages: transcript(), Tools: []ToolDefinition{searchTool}})
	require.NoError(t, err)

	req, ok := reply.(ToolRequest)
	require.True(t, ok)
	require.Len(t, req.Calls, 1)
	assert.Equal(t, ToolCall{ID: "call_2", Name: "gmail_get_email_body", Arguments: map[string]any{"message_id": "m1"}}, req.Calls[0])

	assert.Equal(t, "gpt-4o-mini", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)
	assert.Equal(t, "call_1", msgs[3].(map[string]any)["tool_call_id"])

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "gmail_search_emails", fn["name"])
}

func TestOpenAIFinalAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"No unread mail."}}]}`))
	}))
	defer srv.Close()

	m := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/"})
	reply, err := m.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, FinalAnswer{Text: "No unread mail."}, reply)
}
