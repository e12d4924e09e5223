package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxchat/internal/instrumentation"
)

const userID = "me"

// metadataConcurrency bounds the parallel messages.get calls issued when
// expanding a list result into summaries.
const metadataConcurrency = 8

// Client wraps the Gmail Users service for the authenticated user.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
}

// New wraps an existing Gmail service. metrics may be nil.
func New(svc *gmail.Service, metrics *instrumentation.Metrics) *Client {
	return &Client{svc: svc.Users, metrics: metrics}
}

// NewFromHTTPClient builds a Gmail service over an authorized HTTP client.
// Additional options are appended after the HTTP client, which lets tests
// point the client at a fake endpoint.
func NewFromHTTPClient(ctx context.Context, hc *http.Client, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return New(svc, metrics), nil
}

// observe runs fn inside a Gmail span, records the operation metric and
// classifies the returned error.
func (c *Client) observe(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartGmailSpan(ctx, operation, attrs...)
	start := time.Now()

	err := classify(operation, fn(ctx))

	c.metrics.RecordGmailOperation(ctx, operation, instrumentation.StatusFor(err), time.Since(start))
	instrumentation.EndSpan(span, err)
	return err
}

func messageAttr(id string) attribute.KeyValue {
	return attribute.String(instrumentation.SpanAttrMessageID, id)
}

// HeaderValue returns the value of the named header of m, matched case
// insensitively, or "" when absent.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}
