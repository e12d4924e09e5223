package gmail

import "context"

// Mailbox is the set of mailbox operations the assistant's tools use.
// *Client implements it against the Gmail API.
type Mailbox interface {
	ListRecent(ctx context.Context, max int, includeSpamTrash bool) ([]MessageSummary, error)
	Search(ctx context.Context, query string, max int) ([]MessageSummary, error)
	Count(ctx context.Context, query string) (int64, error)
	ListUnread(ctx context.Context, max int) ([]MessageSummary, error)
	ListFromSender(ctx context.Context, sender string, max int) ([]MessageSummary, error)
	ListByDateRange(ctx context.Context, start, end string, max int) ([]MessageSummary, error)
	ListWithAttachments(ctx context.Context, max int) ([]MessageSummary, error)
	ListStarred(ctx context.Context, max int) ([]MessageSummary, error)
	GetMessage(ctx context.Context, id string) (*MessageDetail, error)
	Send(ctx context.Context, to, subject, body string) (*SentMessage, error)
	Reply(ctx context.Context, id, body string) (*SentMessage, error)
	MarkRead(ctx context.Context, id string) error
	MarkUnread(ctx context.Context, id string) error
	Trash(ctx context.Context, id string) error
	AddLabel(ctx context.Context, id, label string) error
	ListLabels(ctx context.Context) ([]Label, error)
	InboxStats(ctx context.Context) (InboxStats, error)
	CountFromSender(ctx context.Context, sender string) (int64, error)
	CountInDateRange(ctx context.Context, start, end string) (int64, error)
}

var _ Mailbox = (*Client)(nil)
