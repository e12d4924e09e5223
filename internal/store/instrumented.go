package store

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

type instrumented struct {
	Store
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Instrument wraps s so saves are traced, counted and logged.
func Instrument(s Store, metrics *instrumentation.Metrics, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{Store: s, metrics: metrics, logger: logger.With(logging.Backend(s.Backend()))}
}

func (i *instrumented) Save(ctx context.Context, doc *conversation.Document) error {
	ctx, span := instrumentation.StartSpan(ctx, "store.save",
		attribute.String(instrumentation.SpanAttrBackend, i.Backend()),
		attribute.String(instrumentation.SpanAttrSession, doc.SessionID),
	)
	start := time.Now()

	err := i.Store.Save(ctx, doc)
	duration := time.Since(start)

	i.metrics.RecordSessionSave(ctx, i.Backend(), instrumentation.StatusFor(err), duration)
	instrumentation.EndSpan(span, err)

	if err != nil {
		i.logger.Warn("session save failed", logging.Session(doc.SessionID), logging.Err(err))
		return err
	}
	i.logger.Info("session saved",
		logging.Session(doc.SessionID),
		slog.Int("total_messages", doc.TotalMessages),
		slog.String("duration", doc.Duration),
	)
	return nil
}
