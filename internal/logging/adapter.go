package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// PrintfAdapter adapts an slog.Logger to the printf-style logger interface
// expected by libraries such as goose.
type PrintfAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewPrintfAdapter creates a new PrintfAdapter wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewPrintfAdapter(logger *slog.Logger, level slog.Level) *PrintfAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrintfAdapter{logger: logger, level: level}
}

// Printf logs a formatted message at the adapter's level.
func (a *PrintfAdapter) Printf(format string, v ...interface{}) {
	a.logger.Log(context.Background(), a.level, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs a formatted message at error level and exits.
func (a *PrintfAdapter) Fatalf(format string, v ...interface{}) {
	a.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// Logger returns the underlying slog.Logger for direct access when needed.
func (a *PrintfAdapter) Logger() *slog.Logger {
	return a.logger
}

// NewLogger builds the process logger. Text output goes to stderr so that the
// terminal chat and the MCP stdio transport keep stdout to themselves.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
