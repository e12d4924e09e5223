package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() mcp.Tool {
	return mcp.NewTool("echo",
		mcp.WithDescription("Echo the text back"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to echo")),
		mcp.WithNumber("times", mcp.Description("Repeat count")),
		mcp.WithBoolean("upper", mcp.Description("Upper-case the text")),
	)
}

func TestRegistry_RegisterAndDefinitions(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}

	require.NoError(t, r.Register(echoTool(), handler))
	require.NoError(t, r.Register(mcp.NewTool("ping", mcp.WithDescription("Ping")), handler))

	err := r.Register(echoTool(), handler)
	assert.ErrorIs(t, err, ErrDuplicateTool)

	assert.Equal(t, []string{"echo", "ping"}, r.Names())
	assert.Equal(t, 2, r.Len())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "Echo the text back", defs[0].Description)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(defs[0].Parameters, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"text"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "times")

	require.NoError(t, json.Unmarshal(defs[1].Parameters, &schema))
	assert.Empty(t, schema["properties"])
}

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()
	var calls int
	require.NoError(t, r.Register(echoTool(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		calls++
		return mcp.NewToolResultText(req.GetArguments()["text"].(string)), nil
	}))

	res, err := r.Call(context.Background(), "echo", map[string]any{"text": "hello", "times": 2.0})
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "hello"}, res)
	assert.Equal(t, 1, calls)
}

func TestRegistry_CallMalformed(t *testing.T) {
	r := NewRegistry()
	var calls int
	require.NoError(t, r.Register(echoTool(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		calls++
		return mcp.NewToolResultText("ok"), nil
	}))

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"unknown tool", "nope", map[string]any{}},
		{"missing required", "echo", map[string]any{}},
		{"empty required", "echo", map[string]any{"text": ""}},
		{"wrong string type", "echo", map[string]any{"text": 12.0}},
		{"wrong number type", "echo", map[string]any{"text": "x", "times": "two"}},
		{"wrong bool type", "echo", map[string]any{"text": "x", "upper": "yes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(context.Background(), tt.tool, tt.args)
			assert.ErrorIs(t, err, ErrMalformedCall)
		})
	}
	assert.Zero(t, calls)
}

func TestRegistry_CallErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mcp.NewTool("fails"), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("message not found"), nil
	}))
	require.NoError(t, r.Register(mcp.NewTool("auth"), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, ErrAuthRequired
	}))

	res, err := r.Call(context.Background(), "fails", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "message not found", res.Text)

	res, err = r.Call(context.Background(), "auth", nil)
	assert.True(t, errors.Is(err, ErrAuthRequired))
	assert.True(t, res.IsError)
}

func TestRegistry_MCPServer(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}))

	s := r.MCPServer("inboxchat", "test")
	listed := s.ListTools()
	require.Len(t, listed, 1)
	assert.Contains(t, listed, "echo")
}
