package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "inboxchat", config.ServiceName)
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterPrometheus, config.MetricsExporter)
	assert.Equal(t, ExporterNone, config.TracingExporter)
	assert.Equal(t, 1.0, config.TraceSampleRatio)
	assert.True(t, config.RuntimeMetrics)
	assert.True(t, config.Audit.Enabled)
	assert.False(t, config.Audit.IncludeArguments)
	assert.False(t, config.Audit.MutationsOnly)
	assert.NoError(t, config.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	config, err := ConfigFromEnv(envMap(map[string]string{
		"OTEL_SERVICE_NAME":               "test-service",
		"INSTRUMENTATION_ENABLED":         "false",
		"METRICS_EXPORTER":                "stdout",
		"TRACING_EXPORTER":                "otlp",
		"OTEL_EXPORTER_OTLP_ENDPOINT":     "localhost:4318",
		"OTEL_EXPORTER_OTLP_INSECURE":     "true",
		"OTEL_TRACES_SAMPLER_ARG":         "0.5",
		"METRICS_RUNTIME":                 "false",
		"AUDIT_LOGGING_INCLUDE_ARGUMENTS": "true",
		"AUDIT_LOGGING_MUTATIONS_ONLY":    "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "test-service", config.ServiceName)
	assert.False(t, config.Enabled)
	assert.Equal(t, ExporterStdout, config.MetricsExporter)
	assert.Equal(t, ExporterOTLP, config.TracingExporter)
	assert.Equal(t, OTLPConfig{Endpoint: "localhost:4318", Insecure: true}, config.OTLP)
	assert.Equal(t, 0.5, config.TraceSampleRatio)
	assert.False(t, config.RuntimeMetrics)
	assert.True(t, config.Audit.IncludeArguments)
	assert.True(t, config.Audit.MutationsOnly)
}

func TestConfigFromEnv_EmptyValuesKeepDefaults(t *testing.T) {
	config, err := ConfigFromEnv(envMap(map[string]string{
		"OTEL_SERVICE_NAME":       "",
		"INSTRUMENTATION_ENABLED": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestConfigFromEnv_InvalidValues(t *testing.T) {
	config, err := ConfigFromEnv(envMap(map[string]string{
		"INSTRUMENTATION_ENABLED": "maybe",
		"OTEL_TRACES_SAMPLER_ARG": "lots",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSTRUMENTATION_ENABLED")
	assert.Contains(t, err.Error(), "OTEL_TRACES_SAMPLER_ARG")

	// Bad values leave the defaults in place.
	assert.True(t, config.Enabled)
	assert.Equal(t, 1.0, config.TraceSampleRatio)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid prometheus config",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSampleRatio: 0.1},
		},
		{
			name:    "sample ratio too high",
			config:  Config{TraceSampleRatio: 1.5},
			wantErr: "sample ratio",
		},
		{
			name:    "sample ratio negative",
			config:  Config{TraceSampleRatio: -0.1},
			wantErr: "sample ratio",
		},
		{
			name:    "unknown metrics exporter",
			config:  Config{MetricsExporter: "graphite"},
			wantErr: "graphite",
		},
		{
			name:    "unknown tracing exporter",
			config:  Config{TracingExporter: "zipkin"},
			wantErr: "zipkin",
		},
		{
			name:    "otlp tracing without endpoint",
			config:  Config{TracingExporter: ExporterOTLP},
			wantErr: "OTLP endpoint",
		},
		{
			name:    "otlp metrics without endpoint",
			config:  Config{MetricsExporter: ExporterOTLP},
			wantErr: "OTLP endpoint",
		},
		{
			name: "otlp with endpoint",
			config: Config{
				MetricsExporter: ExporterOTLP,
				TracingExporter: ExporterOTLP,
				OTLP:            OTLPConfig{Endpoint: "localhost:4318"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
