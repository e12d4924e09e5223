package gmail_tools

import (
	"context"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/gmail"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/common"
)

func maxResultsOption(def int) mcp.ToolOption {
	return mcp.WithNumber("max_results",
		mcp.Description("Maximum number of emails to return (default: "+strconv.Itoa(def)+", max: 50)"),
	)
}

func registerReadTools(r *tools.Registry, h *handlers) error {
	defs := []struct {
		tool    mcp.Tool
		handler func(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error)
	}{
		{
			mcp.NewTool("gmail_get_recent_emails",
				mcp.WithDescription("Get the most recent emails. Spam and trash are excluded unless include_spam_trash is true."),
				maxResultsOption(defaultRecentResults),
				mcp.WithBoolean("include_spam_trash",
					mcp.Description("Include messages from spam and trash (default: false)"),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			getRecentEmails,
		},
		{
			mcp.NewTool("gmail_search_emails",
				mcp.WithDescription("Search emails using Gmail query syntax"),
				mcp.WithString("query",
					mcp.Required(),
					mcp.Description("Gmail search query (e.g., 'from:alice subject:invoice', 'is:unread newer_than:2d')"),
				),
				maxResultsOption(defaultResults),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			searchEmails,
		},
		{
			mcp.NewTool("gmail_count_emails",
				mcp.WithDescription("Count emails matching a Gmail query; an empty query counts all emails"),
				mcp.WithString("query",
					mcp.Description("Gmail search query (default: all emails)"),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			countEmails,
		},
		{
			mcp.NewTool("gmail_get_unread_emails",
				mcp.WithDescription("Get unread emails"),
				maxResultsOption(defaultResults),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			listWith(func(ctx context.Context, mb gmail.Mailbox, max int) ([]gmail.MessageSummary, error) {
				return mb.ListUnread(ctx, max)
			}, "is:unread"),
		},
		{
			mcp.NewTool("gmail_get_emails_from_sender",
				mcp.WithDescription("Get emails from a specific sender"),
				mcp.WithString("sender_email",
					mcp.Required(),
					mcp.Description("Sender email address or name"),
				),
				maxResultsOption(defaultResults),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			getEmailsFromSender,
		},
		{
			mcp.NewTool("gmail_get_emails_by_date_range",
				mcp.WithDescription("Get emails received within a date range"),
				mcp.WithString("start_date",
					mcp.Required(),
					mcp.Description("Start date, YYYY-MM-DD"),
				),
				mcp.WithString("end_date",
					mcp.Required(),
					mcp.Description("End date, YYYY-MM-DD (exclusive)"),
				),
				maxResultsOption(defaultResults),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			getEmailsByDateRange,
		},
		{
			mcp.NewTool("gmail_get_email_body",
				mcp.WithDescription("Get the full body content and metadata of a specific email"),
				mcp.WithString("message_id",
					mcp.Required(),
					mcp.Description("The message id, as returned by the list and search tools"),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			getEmailBody,
		},
		{
			mcp.NewTool("gmail_get_inbox_stats",
				mcp.WithDescription("Get mailbox statistics: total, unread and starred email counts"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			getInboxStats,
		},
		{
			mcp.NewTool("gmail_count_emails_from_sender",
				mcp.WithDescription("Count emails from a specific sender"),
				mcp.WithString("sender_email",
					mcp.Required(),
					mcp.Description("Sender email address or name"),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			countEmailsFromSender,
		},
		{
			mcp.NewTool("gmail_count_emails_in_date_range",
				mcp.WithDescription("Count emails received within a date range"),
				mcp.WithString("start_date",
					mcp.Required(),
					mcp.Description("Start date, YYYY-MM-DD"),
				),
				mcp.WithString("end_date",
					mcp.Required(),
					mcp.Description("End date, YYYY-MM-DD (exclusive)"),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			countEmailsInDateRange,
		},
		{
			mcp.NewTool("gmail_get_emails_with_attachments",
				mcp.WithDescription("Get emails that have attachments"),
				maxResultsOption(defaultResults),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			listWith(func(ctx context.Context, mb gmail.Mailbox, max int) ([]gmail.MessageSummary, error) {
				return mb.ListWithAttachments(ctx, max)
			}, "has:attachment"),
		},
		{
			mcp.NewTool("gmail_get_starred_emails",
				mcp.WithDescription("Get starred emails"),
				maxResultsOption(defaultResults),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			listWith(func(ctx context.Context, mb gmail.Mailbox, max int) ([]gmail.MessageSummary, error) {
				return mb.ListStarred(ctx, max)
			}, "is:starred"),
		},
		{
			mcp.NewTool("gmail_get_email_labels",
				mcp.WithDescription("List all labels in the mailbox with their ids"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			getEmailLabels,
		},
	}

	for _, d := range defs {
		if err := r.Register(d.tool, h.mailboxHandler(d.handler)); err != nil {
			return err
		}
	}
	return nil
}

func maxResults(args map[string]any, def int) int {
	return common.IntArg(args, "max_results", def, gmail.MaxResultsLimit)
}

func listWith(fn func(ctx context.Context, mb gmail.Mailbox, max int) ([]gmail.MessageSummary, error), query string) func(context.Context, gmail.Mailbox, map[string]any) (any, error) {
	return func(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
		emails, err := fn(ctx, mb, maxResults(args, defaultResults))
		if err != nil {
			return nil, err
		}
		return newListResult(query, emails), nil
	}
}

func getRecentEmails(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	emails, err := mb.ListRecent(ctx, maxResults(args, defaultRecentResults), common.BoolArg(args, "include_spam_trash", false))
	if err != nil {
		return nil, err
	}
	return newListResult("", emails), nil
}

func searchEmails(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	query := common.StringArg(args, "query")
	emails, err := mb.Search(ctx, query, maxResults(args, defaultResults))
	if err != nil {
		return nil, err
	}
	return newListResult(query, emails), nil
}

func countEmails(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	query := common.StringArg(args, "query")
	n, err := mb.Count(ctx, query)
	if err != nil {
		return nil, err
	}
	if query == "" {
		query = "all"
	}
	return countResult{Success: true, Query: query, Count: n}, nil
}

func getEmailsFromSender(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	sender := common.StringArg(args, "sender_email")
	emails, err := mb.ListFromSender(ctx, sender, maxResults(args, defaultResults))
	if err != nil {
		return nil, err
	}
	return newListResult("from:"+sender, emails), nil
}

func getEmailsByDateRange(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	start, end := common.StringArg(args, "start_date"), common.StringArg(args, "end_date")
	emails, err := mb.ListByDateRange(ctx, start, end, maxResults(args, defaultResults))
	if err != nil {
		return nil, err
	}
	return newListResult(start+".."+end, emails), nil
}

func getEmailBody(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	id := common.StringArg(args, "message_id")
	detail, err := mb.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return struct {
		Success   bool                 `json:"success"`
		MessageID string               `json:"message_id"`
		Body      string               `json:"body"`
		Metadata  gmail.MessageSummary `json:"metadata"`
	}{true, id, detail.Body, detail.MessageSummary}, nil
}

func getInboxStats(ctx context.Context, mb gmail.Mailbox, _ map[string]any) (any, error) {
	stats, err := mb.InboxStats(ctx)
	if err != nil {
		return nil, err
	}
	return struct {
		Success bool             `json:"success"`
		Stats   gmail.InboxStats `json:"stats"`
	}{true, stats}, nil
}

func countEmailsFromSender(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	sender := common.StringArg(args, "sender_email")
	n, err := mb.CountFromSender(ctx, sender)
	if err != nil {
		return nil, err
	}
	return countResult{Success: true, Query: "from:" + sender, Count: n}, nil
}

func countEmailsInDateRange(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	start, end := common.StringArg(args, "start_date"), common.StringArg(args, "end_date")
	n, err := mb.CountInDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return countResult{Success: true, Query: start + ".." + end, Count: n}, nil
}

func getEmailLabels(ctx context.Context, mb gmail.Mailbox, _ map[string]any) (any, error) {
	labels, err := mb.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = []gmail.Label{}
	}
	return struct {
		Success bool          `json:"success"`
		Count   int           `json:"count"`
		Labels  []gmail.Label `json:"labels"`
	}{true, len(labels), labels}, nil
}
