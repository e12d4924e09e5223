// Package server serves the browser chat.
//
// ServerContext owns the Google authenticator and the lazily created Gmail
// client. The Gmail tools obtain their mailbox from it, and it drops the
// client when Google rejects the token so the next call picks up a fresh
// sign-in.
//
// Server exposes:
//   - the chat page at /
//   - a JSON API under /api for messages and sessions
//   - a websocket at /ws that streams transcript turns while the agent works
//   - the Google sign-in flow under /auth
//   - health endpoints at /healthz and /readyz
//
// MetricsServer serves the Prometheus endpoint on its own address.
package server
