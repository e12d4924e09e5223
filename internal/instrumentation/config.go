package instrumentation

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// Exporter names accepted by MetricsExporter and TracingExporter.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Label values shared by the recorders.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OutcomeAnswered       = "answered"
	OutcomeModelError     = "model_error"
	OutcomeIterationLimit = "iteration_limit"
	OutcomeCanceled       = "canceled"

	OAuthResultSuccess      = "success"
	OAuthResultDenied       = "denied"
	OAuthResultInvalidState = "invalid_state"
	OAuthResultError        = "error"
)

// Config controls telemetry for one process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// InstanceID defaults to the hostname.
	InstanceID string

	// Enabled false turns every recorder into a no-op.
	Enabled bool

	MetricsExporter string
	TracingExporter string

	OTLP OTLPConfig

	// TraceSampleRatio is the fraction of agent turns traced, 0 to 1.
	TraceSampleRatio float64

	// RuntimeMetrics adds the Go runtime and process collectors to the
	// Prometheus registry.
	RuntimeMetrics bool

	Audit AuditLoggingConfig
}

// OTLPConfig is the collector used by the otlp exporters.
type OTLPConfig struct {
	// Endpoint is host:port without a scheme, e.g. "localhost:4318".
	Endpoint string
	// Insecure sends plain HTTP. Spans carry tool names and session ids,
	// so only use it with a local collector.
	Insecure bool
}

// AuditLoggingConfig controls the tool audit trail.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludeArguments writes argument values. Message bodies are always
	// reduced to their length.
	IncludeArguments bool

	// MutationsOnly skips calls that only read the mailbox.
	MutationsOnly bool
}

// DefaultConfig returns the built-in defaults: Prometheus metrics, no
// tracing, audit of every call without argument values.
func DefaultConfig() Config {
	return Config{
		ServiceName:      "inboxchat",
		ServiceVersion:   "unknown",
		Enabled:          true,
		MetricsExporter:  ExporterPrometheus,
		TracingExporter:  ExporterNone,
		TraceSampleRatio: 1.0,
		RuntimeMetrics:   true,
		Audit:            AuditLoggingConfig{Enabled: true},
	}
}

// ConfigFromEnv applies the OpenTelemetry and audit environment variables
// on top of DefaultConfig. Unparsable values are reported, not ignored.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}

	str("OTEL_SERVICE_NAME", &c.ServiceName)
	str("OTEL_SERVICE_INSTANCE_ID", &c.InstanceID)
	boolean("INSTRUMENTATION_ENABLED", &c.Enabled)
	str("METRICS_EXPORTER", &c.MetricsExporter)
	str("TRACING_EXPORTER", &c.TracingExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLP.Endpoint)
	boolean("OTEL_EXPORTER_OTLP_INSECURE", &c.OTLP.Insecure)
	boolean("METRICS_RUNTIME", &c.RuntimeMetrics)
	boolean("AUDIT_LOGGING_ENABLED", &c.Audit.Enabled)
	boolean("AUDIT_LOGGING_INCLUDE_ARGUMENTS", &c.Audit.IncludeArguments)
	boolean("AUDIT_LOGGING_MUTATIONS_ONLY", &c.Audit.MutationsOnly)

	if v, ok := lookup("OTEL_TRACES_SAMPLER_ARG"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG: %q is not a number", v))
		} else {
			c.TraceSampleRatio = f
		}
	}

	return c, errors.Join(errs...)
}

// Validate checks exporter names, the sample ratio and the OTLP endpoint.
func (c *Config) Validate() error {
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be between 0.0 and 1.0, got %g", c.TraceSampleRatio)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %v", c.MetricsExporter, metricsExporters)
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %v", c.TracingExporter, tracingExporters)
	}
	if (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) && c.OTLP.Endpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter; set OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return nil
}
