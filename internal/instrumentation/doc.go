// Package instrumentation provides OpenTelemetry metrics, tracing and tool
// audit logging for inboxchat.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds: web chat traffic by route
//   - active_sessions: open chat sessions
//   - gmail_api_operations_total, gmail_api_operation_duration_seconds
//   - oauth_auth_total: Google OAuth code exchanges
//   - tool_invocations_total, tool_duration_seconds: tool calls requested by the model
//   - llm_requests_total, llm_request_duration_seconds: by provider and model
//   - agent_turns_total, agent_turn_iterations: outcome and reasoning steps per user message
//   - session_saves_total, session_save_duration_seconds: by store backend
//
// # Tracing
//
// Each user message produces an agent.turn span with llm.generate and
// tool.<name> children; Gmail calls add gmail.<operation> spans below those.
//
// # Configuration
//
// ConfigFromEnv reads:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 1.0)
//   - METRICS_RUNTIME: Go runtime and process collectors (default: true)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_ARGUMENTS,
//     AUDIT_LOGGING_MUTATIONS_ONLY
//
// # Example Usage
//
//	config, err := instrumentation.ConfigFromEnv(os.LookupEnv)
//	if err != nil {
//		return err
//	}
//	provider, err := instrumentation.NewProvider(ctx, config, logger)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordToolInvocation(ctx, "gmail_search_emails", "success", time.Since(start))
package instrumentation
