package llm

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

type iterationKey struct{}

// WithIteration records the reasoning step number on ctx for spans.
func WithIteration(ctx context.Context, iteration int) context.Context {
	return context.WithValue(ctx, iterationKey{}, iteration)
}

func iterationFrom(ctx context.Context) int {
	n, _ := ctx.Value(iterationKey{}).(int)
	return n
}

type instrumented struct {
	Model
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Instrument wraps m so every Generate call is traced, counted and logged.
func Instrument(m Model, metrics *instrumentation.Metrics, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{Model: m, metrics: metrics, logger: logger}
}

// Close closes the wrapped model.
func (i *instrumented) Close() error {
	return Close(i.Model)
}

func (i *instrumented) Generate(ctx context.Context, req *Request) (Reply, error) {
	ctx, span := instrumentation.StartModelSpan(ctx, i.Provider(), i.Name(), iterationFrom(ctx))
	start := time.Now()

	reply, err := i.Model.Generate(ctx, req)
	duration := time.Since(start)

	i.metrics.RecordModelRequest(ctx, i.Provider(), i.Name(), instrumentation.StatusFor(err), duration)
	if tr, ok := reply.(ToolRequest); ok {
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrToolCalls, len(tr.Calls)))
	}
	instrumentation.EndSpan(span, err)

	attrs := []any{
		logging.Provider(i.Provider()),
		logging.Model(i.Name()),
		slog.Duration(logging.KeyDuration, duration),
	}
	if err != nil {
		i.logger.Warn("model request failed", append(attrs, logging.Err(err))...)
	} else {
		i.logger.Debug("model request completed", attrs...)
	}
	return reply, err
}
