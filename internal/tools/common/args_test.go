package common

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArgs(t *testing.T) {
	args := map[string]any{"query": "  is:unread ", "n": 3.0, "empty": ""}

	assert.Equal(t, "is:unread", StringArg(args, "query"))
	assert.Equal(t, "", StringArg(args, "n"))
	assert.Equal(t, "", StringArg(args, "missing"))

	v, err := RequiredStringArg(args, "query")
	require.NoError(t, err)
	assert.Equal(t, "is:unread", v)

	_, err = RequiredStringArg(args, "empty")
	assert.EqualError(t, err, "empty is required")
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"absent", map[string]any{}, 20},
		{"float", map[string]any{"max_results": 5.0}, 5},
		{"int", map[string]any{"max_results": 7}, 7},
		{"capped", map[string]any{"max_results": 500.0}, 50},
		{"zero uses default", map[string]any{"max_results": 0.0}, 20},
		{"negative uses default", map[string]any{"max_results": -4.0}, 20},
		{"wrong type", map[string]any{"max_results": "ten"}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntArg(tt.args, "max_results", 20, 50))
		})
	}
}

func TestBoolArg(t *testing.T) {
	assert.True(t, BoolArg(map[string]any{"b": true}, "b", false))
	assert.True(t, BoolArg(map[string]any{"b": "yes"}, "b", false))
	assert.False(t, BoolArg(map[string]any{"b": "false"}, "b", true))
	assert.True(t, BoolArg(map[string]any{}, "b", true))
}

func TestResults(t *testing.T) {
	res, err := JSONResult(map[string]any{"success": true, "count": 2})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"success": true, "count": 2}`, ResultText(res))

	res = ErrorResult("message %s not found", "m1")
	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"success": false, "error": "message m1 not found"}`, ResultText(res))

	assert.Equal(t, "", ResultText(nil))
	assert.Equal(t, "a\nb", ResultText(&mcp.CallToolResult{Content: []mcp.Content{
		mcp.TextContent{Type: "text", Text: "a"},
		&mcp.TextContent{Type: "text", Text: "b"},
	}}))
}
