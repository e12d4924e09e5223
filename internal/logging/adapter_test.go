package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewPrintfAdapter_WithNil(t *testing.T) {
	adapter := NewPrintfAdapter(nil, slog.LevelInfo)
	if adapter == nil {
		t.Fatal("NewPrintfAdapter returned nil")
	}
	if adapter.Logger() == nil {
		t.Error("adapter.logger should not be nil when created with nil")
	}
}

func TestPrintfAdapter_Printf(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewPrintfAdapter(logger, slog.LevelDebug)

	adapter.Printf("OK   %s (%d ms)\n", "00001_sessions.sql", 12)

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") {
		t.Errorf("expected debug level in output, got %q", out)
	}
	if !strings.Contains(out, "00001_sessions.sql (12 ms)") {
		t.Errorf("expected formatted message in output, got %q", out)
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger(false).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled by default")
	}
	if !NewLogger(true).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled with debug=true")
	}
}
