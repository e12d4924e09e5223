package gmail_tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/gmail"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/common"
)

// Result size defaults for the list tools.
const (
	defaultRecentResults = 10
	defaultResults       = 20
)

// MailboxProvider hands out the mailbox of the authenticated user.
type MailboxProvider interface {
	// Mailbox returns the mailbox, creating the client on first use. It
	// fails with gmail.ErrAuthRequired when no usable token exists.
	Mailbox(ctx context.Context) (gmail.Mailbox, error)

	// ResetMailbox drops the cached client so the next call re-reads the
	// token.
	ResetMailbox()
}

// RegisterGmailTools registers the mailbox tools. With readOnly set, tools
// that send, modify or delete mail are left out.
func RegisterGmailTools(r *tools.Registry, provider MailboxProvider, readOnly bool) error {
	h := &handlers{provider: provider}

	if err := registerReadTools(r, h); err != nil {
		return fmt.Errorf("failed to register read tools: %w", err)
	}
	if readOnly {
		return nil
	}
	if err := registerWriteTools(r, h); err != nil {
		return fmt.Errorf("failed to register write tools: %w", err)
	}
	return nil
}

type handlers struct {
	provider MailboxProvider
}

// mailboxHandler adapts a function over a mailbox into a tool handler. It
// resolves the mailbox and maps adapter errors onto tool results.
func (h *handlers) mailboxHandler(fn func(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mb, err := h.provider.Mailbox(ctx)
		if err != nil {
			return h.failure(err)
		}

		out, err := fn(ctx, mb, request.GetArguments())
		if err != nil {
			return h.failure(err)
		}
		return common.JSONResult(out)
	}
}

// failure turns an error into a tool error result. Authentication errors
// are returned as Go errors so the caller can ask the user to sign in
// again.
func (h *handlers) failure(err error) (*mcp.CallToolResult, error) {
	if gmail.IsAuthError(err) {
		h.provider.ResetMailbox()
		return nil, fmt.Errorf("%w: %v", tools.ErrAuthRequired, err)
	}

	var svcErr *gmail.ServiceError
	switch {
	case errors.Is(err, gmail.ErrNotFound):
		return common.ErrorResult("%v", err), nil
	case errors.Is(err, gmail.ErrInvalidArgument):
		return common.ErrorResult("%v", err), nil
	case errors.As(err, &svcErr):
		return common.ErrorResult("%s", svcErr.Error()), nil
	default:
		return common.ErrorResult("%v", err), nil
	}
}

// listResult is the shape returned by every list tool.
type listResult struct {
	Success bool                   `json:"success"`
	Query   string                 `json:"query,omitempty"`
	Count   int                    `json:"count"`
	Emails  []gmail.MessageSummary `json:"emails"`
}

func newListResult(query string, emails []gmail.MessageSummary) listResult {
	if emails == nil {
		emails = []gmail.MessageSummary{}
	}
	return listResult{Success: true, Query: query, Count: len(emails), Emails: emails}
}

type countResult struct {
	Success bool   `json:"success"`
	Query   string `json:"query"`
	Count   int64  `json:"count"`
}

type actionResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	Message   string `json:"message"`
}
