// Package cmd implements the command-line interface for inboxchat.
//
// This package provides the following commands:
//   - serve: Start the web chat server (default)
//   - chat: Chat in the terminal
//   - auth: Sign in to Google, sign out, show status
//   - sessions: List and show saved chat sessions
//   - mcp: Serve the Gmail tools over MCP stdio
//   - tools docs: Generate markdown documentation for the Gmail tools
//   - version: Display version information
package cmd
