package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/instrumentation"
)

// Instruments bundles the optional observability sinks for tool handlers.
// Both fields may be nil.
type Instruments struct {
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

type invocationKey struct{}

// Invocation identifies a single tool call within a chat session.
type Invocation struct {
	SessionID string
	CallID    string
}

// WithInvocation attaches session and call identifiers to ctx so that
// instrumented handlers can record them.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFromContext returns the identifiers attached by WithInvocation.
func InvocationFromContext(ctx context.Context) Invocation {
	inv, _ := ctx.Value(invocationKey{}).(Invocation)
	return inv
}

// Mutating reports whether a tool changes the mailbox. Tools without a
// read-only hint count as mutating.
func Mutating(tool mcp.Tool) bool {
	hint := tool.Annotations.ReadOnlyHint
	return hint == nil || !*hint
}

// InstrumentedToolHandler wraps a tool handler with a span, invocation
// metrics and an audit record. The registry applies it to every handler.
func InstrumentedToolHandler(tool mcp.Tool, in Instruments, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	toolName := tool.Name
	mutating := Mutating(tool)

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inv := InvocationFromContext(ctx)

		ctx, span := instrumentation.StartToolSpan(ctx, toolName, inv.CallID)
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName, inv.CallID).
			WithSession(inv.SessionID).
			Mutates(mutating).
			WithArguments(request.GetArguments()).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errors.New(ResultText(result))
		}

		invocation.Complete(failure)
		in.Metrics.RecordToolInvocation(ctx, toolName, instrumentation.StatusFor(failure), time.Since(start))
		in.Audit.LogToolInvocation(invocation)
		instrumentation.EndSpan(span, failure)

		return result, err
	}
}
