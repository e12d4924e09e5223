// Package store persists ended chat sessions.
//
// A Store keeps one document per session id; saving the same id again
// replaces the stored document. Open picks a backend from the DSN scheme:
//
//	memory://                      in-process map
//	sqlite:///path/sessions.db     SQLite file (also file:... and bare paths)
//	postgres://user@host/db        PostgreSQL
//	redis://host:6379/0            Redis
//
// SQL backends create their schema with embedded goose migrations.
package store
