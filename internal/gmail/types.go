package gmail

// MessageSummary is the metadata view of a message returned by list and
// search operations.
type MessageSummary struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Subject  string   `json:"subject"`
	Date     string   `json:"date"`
	Snippet  string   `json:"snippet"`
	LabelIDs []string `json:"labels,omitempty"`
	Unread   bool     `json:"unread"`
	Starred  bool     `json:"starred"`
}

// MessageDetail is a message with its decoded plain-text body.
type MessageDetail struct {
	MessageSummary
	Body string `json:"body"`
}

// Label is a Gmail label.
type Label struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	MessagesTotal  int64  `json:"messages_total,omitempty"`
	MessagesUnread int64  `json:"messages_unread,omitempty"`
}

// InboxStats holds mailbox-wide counts.
type InboxStats struct {
	Total   int64 `json:"total"`
	Unread  int64 `json:"unread"`
	Starred int64 `json:"starred"`
}

// SentMessage identifies a message created by Send or Reply.
type SentMessage struct {
	ID       string `json:"message_id"`
	ThreadID string `json:"thread_id"`
}

// System label ids used by the adapter.
const (
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
	LabelInbox   = "INBOX"
)
