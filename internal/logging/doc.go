// Package logging provides structured logging utilities for inboxchat.
//
// All components log through log/slog. This package keeps attribute names
// consistent (session, tool, provider, store backend) and makes sure
// personal data and secrets stay out of the logs.
//
// # Usage Patterns
//
// Scope a logger to a chat session:
//
//	logger := logging.WithSession(slog.Default(), sess.ID)
//	logger.Info("tool call finished",
//	    logging.Tool("gmail_search_emails"),
//	    logging.Status(logging.StatusSuccess))
//
// Hide secrets before logging:
//
//	logger.Info("opening session store", "dsn", logging.RedactDSN(dsn))
//	logger.Info("email sent", logging.Recipient(to))
//
// Hand slog to libraries that expect Printf:
//
//	goose.SetLogger(logging.NewPrintfAdapter(logger, slog.LevelDebug))
package logging
