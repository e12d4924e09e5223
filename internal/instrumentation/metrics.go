package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrTool      = "tool"
	attrProvider  = "provider"
	attrModel     = "model"
	attrBackend   = "backend"
	attrOutcome   = "outcome"
)

// Metrics records the counters and histograms of the chat assistant.
// A zero Metrics is a valid no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	gmailOperationsTotal   metric.Int64Counter
	gmailOperationDuration metric.Float64Histogram

	oauthAuthTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	modelRequestsTotal   metric.Int64Counter
	modelRequestDuration metric.Float64Histogram

	agentTurnsTotal     metric.Int64Counter
	agentTurnIterations metric.Int64Histogram

	sessionSavesTotal   metric.Int64Counter
	sessionSaveDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.httpRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("active_sessions",
		metric.WithDescription("Number of open chat sessions"),
		metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	if m.gmailOperationsTotal, err = meter.Int64Counter("gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}
	if m.gmailOperationDuration, err = meter.Float64Histogram("gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	if m.oauthAuthTotal, err = meter.Int64Counter("oauth_auth_total",
		metric.WithDescription("Total number of Google OAuth code exchanges"),
		metric.WithUnit("{attempt}")); err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	if m.toolInvocationsTotal, err = meter.Int64Counter("tool_invocations_total",
		metric.WithDescription("Total number of tool invocations requested by the model"),
		metric.WithUnit("{invocation}")); err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram("tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	if m.modelRequestsTotal, err = meter.Int64Counter("llm_requests_total",
		metric.WithDescription("Total number of language model requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create llm_requests_total counter: %w", err)
	}
	if m.modelRequestDuration, err = meter.Float64Histogram("llm_request_duration_seconds",
		metric.WithDescription("Language model request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0)); err != nil {
		return nil, fmt.Errorf("failed to create llm_request_duration_seconds histogram: %w", err)
	}

	if m.agentTurnsTotal, err = meter.Int64Counter("agent_turns_total",
		metric.WithDescription("Total number of user messages processed by the agent"),
		metric.WithUnit("{turn}")); err != nil {
		return nil, fmt.Errorf("failed to create agent_turns_total counter: %w", err)
	}
	if m.agentTurnIterations, err = meter.Int64Histogram("agent_turn_iterations",
		metric.WithDescription("Reasoning steps needed per user message"),
		metric.WithUnit("{step}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 7, 10, 15, 20)); err != nil {
		return nil, fmt.Errorf("failed to create agent_turn_iterations histogram: %w", err)
	}

	if m.sessionSavesTotal, err = meter.Int64Counter("session_saves_total",
		metric.WithDescription("Total number of session store writes"),
		metric.WithUnit("{save}")); err != nil {
		return nil, fmt.Errorf("failed to create session_saves_total counter: %w", err)
	}
	if m.sessionSaveDuration, err = meter.Float64Histogram("session_save_duration_seconds",
		metric.WithDescription("Session store write duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0)); err != nil {
		return nil, fmt.Errorf("failed to create session_save_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request. route should be the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGmailOperation records a Gmail API round trip.
func (m *Metrics) RecordGmailOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.gmailOperationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.gmailOperationsTotal.Add(ctx, 1, attrs)
	m.gmailOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records an OAuth code exchange with its result.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records one tool call with its status and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordModelRequest records one language model round trip.
func (m *Metrics) RecordModelRequest(ctx context.Context, provider, model, status string, duration time.Duration) {
	if m == nil || m.modelRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrModel, model),
		attribute.String(attrStatus, status),
	)
	m.modelRequestsTotal.Add(ctx, 1, attrs)
	m.modelRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAgentTurn records how a user message ended and how many reasoning
// steps it took.
func (m *Metrics) RecordAgentTurn(ctx context.Context, outcome string, iterations int) {
	if m == nil || m.agentTurnsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))
	m.agentTurnsTotal.Add(ctx, 1, attrs)
	m.agentTurnIterations.Record(ctx, int64(iterations), attrs)
}

// RecordSessionSave records a session store write.
func (m *Metrics) RecordSessionSave(ctx context.Context, backend, status string, duration time.Duration) {
	if m == nil || m.sessionSavesTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrBackend, backend),
		attribute.String(attrStatus, status),
	)
	m.sessionSavesTotal.Add(ctx, 1, attrs)
	m.sessionSaveDuration.Record(ctx, duration.Seconds(), attrs)
}

// IncrementActiveSessions increments the open sessions gauge.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the open sessions gauge.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}

// StatusFor maps an error to a status label.
func StatusFor(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
