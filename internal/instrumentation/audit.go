package instrumentation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// bodyArguments are reduced to their length even when argument values are
// audited.
var bodyArguments = []string{"body"}

// ToolInvocation is one audited tool call made on behalf of a chat session.
type ToolInvocation struct {
	Tool      string
	CallID    string
	SessionID string

	// Mutating is set for tools that send mail or change a message.
	Mutating  bool
	Arguments map[string]any

	StartTime time.Time
	Duration  time.Duration
	Err       error

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a call.
func NewToolInvocation(tool, callID string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		CallID:    callID,
		StartTime: time.Now(),
	}
}

func (ti *ToolInvocation) WithSession(sessionID string) *ToolInvocation {
	ti.SessionID = sessionID
	return ti
}

func (ti *ToolInvocation) WithArguments(args map[string]any) *ToolInvocation {
	ti.Arguments = args
	return ti
}

// Mutates marks the call as one that changes the mailbox.
func (ti *ToolInvocation) Mutates(mutating bool) *ToolInvocation {
	ti.Mutating = mutating
	return ti
}

// WithSpanContext copies the trace and span ids from ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		ti.TraceID = sc.TraceID().String()
		ti.SpanID = sc.SpanID().String()
	}
	return ti
}

// Complete stops the timer and records the outcome.
func (ti *ToolInvocation) Complete(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Err = err
	return ti
}

// Success reports whether the call completed without error.
func (ti *ToolInvocation) Success() bool { return ti.Err == nil }

// Status is the metric label for the outcome.
func (ti *ToolInvocation) Status() string { return StatusFor(ti.Err) }

func (ti *ToolInvocation) event() (string, slog.Level) {
	switch {
	case ti.Err != nil:
		return "tool_failed", slog.LevelWarn
	case ti.Mutating:
		return "mailbox_changed", slog.LevelInfo
	default:
		return "tool_executed", slog.LevelInfo
	}
}

// LogAttrs returns the record's attributes. Argument names are always
// listed; values only with includeArgs.
func (ti *ToolInvocation) LogAttrs(includeArgs bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("call_id", ti.CallID),
		slog.Bool("mutating", ti.Mutating),
		slog.Duration("duration", ti.Duration),
	}
	if ti.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", ti.SessionID))
	}
	if len(ti.Arguments) > 0 {
		keys := slices.Sorted(maps.Keys(ti.Arguments))
		attrs = append(attrs, slog.String("arg_names", strings.Join(keys, ",")))
		if includeArgs {
			attrs = append(attrs, slog.Any("arguments", redactArguments(ti.Arguments)))
		}
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID), slog.String("span_id", ti.SpanID))
	}
	if ti.Err != nil {
		attrs = append(attrs, slog.String("error", ti.Err.Error()))
	}
	return attrs
}

func redactArguments(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && slices.Contains(bodyArguments, k) {
			v = fmt.Sprintf("<%d chars>", len([]rune(s)))
		}
		out[k] = v
	}
	return out
}

// AuditLogger writes one structured record per tool invocation.
type AuditLogger struct {
	logger *slog.Logger
	config AuditLoggingConfig
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger.With("component", "audit"),
		config: config,
	}
}

// LogToolInvocation writes the record for a finished call. It is safe on a
// nil receiver.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.config.Enabled {
		return
	}
	if al.config.MutationsOnly && !ti.Mutating {
		return
	}

	msg, level := ti.event()
	al.logger.LogAttrs(context.Background(), level, msg, ti.LogAttrs(al.config.IncludeArguments)...)
}
