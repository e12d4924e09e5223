package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/llm"
	"github.com/teemow/inboxchat/internal/tools"
)

// testRegistry registers an "echo" tool with a required text argument, a
// "recent" tool and a "locked" tool that always needs authentication.
func testRegistry(t *testing.T, calls *[]string) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()

	require.NoError(t, r.Register(
		mcp.NewTool("echo", mcp.WithDescription("Echo text back. Used in tests."), mcp.WithString("text", mcp.Required())),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text := req.GetArguments()["text"].(string)
			*calls = append(*calls, text)
			return mcp.NewToolResultText("echo:" + text), nil
		},
	))
	require.NoError(t, r.Register(
		mcp.NewTool("gmail_get_recent_emails", mcp.WithDescription("Get recent emails"), mcp.WithNumber("max_results")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			*calls = append(*calls, "recent")
			n := int(req.GetArguments()["max_results"].(float64))
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf(`{"id":"m%d"}`, i+1)
			}
			return mcp.NewToolResultText(fmt.Sprintf(`{"success":true,"count":%d,"emails":[%s]}`, n, strings.Join(ids, ","))), nil
		},
	))
	require.NoError(t, r.Register(
		mcp.NewTool("locked", mcp.WithDescription("Needs auth")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			*calls = append(*calls, "locked")
			return nil, fmt.Errorf("%w: token revoked", tools.ErrAuthRequired)
		},
	))
	return r
}

func newTestAgent(t *testing.T, model llm.Model, maxIter int) (*Agent, *[]string) {
	t.Helper()
	var calls []string
	a, err := New(Config{Model: model, Tools: testRegistry(t, &calls), MaxIterations: maxIter})
	require.NoError(t, err)
	return a, &calls
}

func roles(turns []conversation.Turn) []conversation.Role {
	out := make([]conversation.Role, len(turns))
	for i, t := range turns {
		out[i] = t.Role
	}
	return out
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Tools: tools.NewRegistry()})
	assert.Error(t, err)
	_, err = New(Config{Model: llm.NewScripted()})
	assert.Error(t, err)

	a, err := New(Config{Model: llm.NewScripted(), Tools: tools.NewRegistry()})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, a.MaxIterations())
}

func TestRunFinalAnswer(t *testing.T) {
	model := llm.NewScripted(llm.Answer("Hello!"))
	a, calls := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	var observed []conversation.Turn
	reply, err := a.Run(context.Background(), sess, "hi", func(turn conversation.Turn) {
		observed = append(observed, turn)
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello!", reply.Text)
	assert.Equal(t, 1, reply.Iterations)
	assert.False(t, reply.AuthRequired)
	assert.Empty(t, *calls)
	assert.Equal(t, []conversation.Role{conversation.RoleUser, conversation.RoleAssistant}, roles(reply.Turns))
	assert.Equal(t, reply.Turns, observed)

	reqs := model.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "- echo: Echo text back.")
	assert.Len(t, reqs[0].Tools, 3)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, reqs[0].Messages)
}

func TestRunExecutesCallsInRequestOrder(t *testing.T) {
	model := llm.NewScripted(
		llm.Calls(
			llm.ToolCall{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "one"}},
			llm.ToolCall{ID: "c2", Name: "echo", Arguments: map[string]any{"text": "two"}},
			llm.ToolCall{ID: "c3", Name: "echo", Arguments: map[string]any{"text": "three"}},
		),
		llm.Answer("done"),
	)
	a, calls := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	reply, err := a.Run(context.Background(), sess, "echo three things", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Iterations)
	assert.Equal(t, []string{"one", "two", "three"}, *calls)

	turns := sess.Turns()
	assert.Equal(t, []conversation.Role{
		conversation.RoleUser, conversation.RoleAssistant,
		conversation.RoleTool, conversation.RoleTool, conversation.RoleTool,
		conversation.RoleAssistant,
	}, roles(turns))
	for i, id := range []string{"c1", "c2", "c3"} {
		require.NotNil(t, turns[2+i].ToolCall)
		assert.Equal(t, id, turns[2+i].ToolCall.ID)
	}
	assert.Equal(t, "echo:two", turns[3].Content)

	// The second request carries all results, in order, before reasoning again.
	second := model.Requests()[1].Messages
	require.Len(t, second, 5)
	for i, id := range []string{"c1", "c2", "c3"} {
		require.NotNil(t, second[2+i].ToolResult)
		assert.Equal(t, id, second[2+i].ToolResult.CallID)
	}
}

func TestRunMalformedCallNeverReachesHandler(t *testing.T) {
	model := llm.NewScripted(
		llm.Calls(llm.ToolCall{ID: "c1", Name: "echo", Arguments: map[string]any{}}),
		llm.Calls(llm.ToolCall{ID: "c2", Name: "no_such_tool"}),
		llm.Answer("sorry"),
	)
	a, calls := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	reply, err := a.Run(context.Background(), sess, "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "sorry", reply.Text)
	assert.Empty(t, *calls)

	turns := sess.Turns()
	require.Len(t, turns, 6)
	for _, i := range []int{2, 4} {
		assert.Equal(t, conversation.RoleTool, turns[i].Role)
		assert.True(t, turns[i].IsError)
		assert.Contains(t, turns[i].Content, tools.ErrMalformedCall.Error())
	}

	// Errors are fed back to the model.
	third := model.Requests()[2].Messages
	assert.True(t, third[2].ToolResult.IsError)
}

func TestRunAuthRequired(t *testing.T) {
	model := llm.NewScripted(
		llm.Calls(llm.ToolCall{ID: "c1", Name: "locked"}),
		llm.Answer("Please sign in again."),
	)
	a, _ := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	reply, err := a.Run(context.Background(), sess, "read my mail", nil)
	require.NoError(t, err)
	assert.True(t, reply.AuthRequired)
	assert.Equal(t, "Please sign in again.", reply.Text)

	turns := sess.Turns()
	require.Len(t, turns, 4)
	assert.True(t, turns[2].IsError)
	assert.Contains(t, turns[2].Content, "authentication required")

	assert.False(t, sess.Closed())
	_, err = sess.AppendUser("still here")
	assert.NoError(t, err)
}

func TestRunModelError(t *testing.T) {
	boom := errors.New("connection reset")
	model := llm.NewScripted(llm.Fail(boom), llm.Answer("back"))
	a, _ := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	reply, err := a.Run(context.Background(), sess, "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModel)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, reply.Text, "connection reset")

	turns := sess.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.RoleAssistant, turns[1].Role)
	assert.True(t, turns[1].IsError)

	// The session continues and the error notice is not sent to the model.
	reply, err = a.Run(context.Background(), sess, "hi again", nil)
	require.NoError(t, err)
	assert.Equal(t, "back", reply.Text)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleUser, Content: "hi again"},
	}, model.Requests()[1].Messages)
}

func TestRunModelErrorAfterToolsKeepsTranscriptConsistent(t *testing.T) {
	model := llm.NewScripted(
		llm.Calls(
			llm.ToolCall{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "a"}},
			llm.ToolCall{ID: "c2", Name: "echo", Arguments: map[string]any{"text": "b"}},
		),
		llm.Fail(errors.New("timeout")),
	)
	a, _ := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	_, err := a.Run(context.Background(), sess, "go", nil)
	require.ErrorIs(t, err, ErrModel)

	results := map[string]bool{}
	var requested []string
	for _, turn := range sess.Turns() {
		for _, c := range turn.ToolCalls {
			requested = append(requested, c.ID)
		}
		if turn.ToolCall != nil {
			results[turn.ToolCall.ID] = true
		}
	}
	for _, id := range requested {
		assert.True(t, results[id], "call %s has no result turn", id)
	}
}

func TestRunIterationLimit(t *testing.T) {
	call := llm.Calls(llm.ToolCall{ID: "c", Name: "echo", Arguments: map[string]any{"text": "again"}})
	model := llm.NewScripted(call, call, call)
	a, calls := newTestAgent(t, model, 2)
	sess := conversation.NewSession()

	reply, err := a.Run(context.Background(), sess, "loop", nil)
	assert.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, 2, reply.Iterations)
	assert.Len(t, model.Requests(), 2)
	assert.Len(t, *calls, 2)

	turns := sess.Turns()
	last := turns[len(turns)-1]
	assert.Equal(t, conversation.RoleAssistant, last.Role)
	assert.True(t, last.IsError)
}

func TestRunClosedSession(t *testing.T) {
	a, _ := newTestAgent(t, llm.NewScripted(llm.Answer("x")), 0)
	sess := conversation.NewSession()
	require.NoError(t, sess.Close(sess.StartedAt()))

	_, err := a.Run(context.Background(), sess, "hi", nil)
	assert.ErrorIs(t, err, conversation.ErrSessionClosed)
}

func TestScenarioLastFiveEmails(t *testing.T) {
	model := llm.NewScripted(
		llm.Calls(llm.ToolCall{ID: "c1", Name: "gmail_get_recent_emails", Arguments: map[string]any{"max_results": 5.0}}),
		llm.Answer("Here are your last 5 emails."),
	)
	a, calls := newTestAgent(t, model, 0)
	sess := conversation.NewSession()

	reply, err := a.Run(context.Background(), sess, "Show me my last 5 emails", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, *calls)
	assert.Equal(t, "Here are your last 5 emails.", reply.Text)

	tool := sess.Turns()[2]
	assert.False(t, tool.IsError)
	assert.Contains(t, tool.Content, `"count":5`)
}

func TestNormalizeCalls(t *testing.T) {
	calls := normalizeCalls([]llm.ToolCall{{Name: "x"}, {ID: "keep", Name: "y", Arguments: map[string]any{"a": 1}}})
	assert.True(t, strings.HasPrefix(calls[0].ID, "call_"))
	assert.NotNil(t, calls[0].Arguments)
	assert.Equal(t, "keep", calls[1].ID)
}
