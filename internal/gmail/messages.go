package gmail

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"
)

var metadataHeaders = []string{"From", "To", "Subject", "Date"}

// ListRecent returns the newest messages. Spam and trash are excluded unless
// includeSpamTrash is set.
func (c *Client) ListRecent(ctx context.Context, max int, includeSpamTrash bool) ([]MessageSummary, error) {
	var out []MessageSummary
	err := c.observe(ctx, "list_recent", func(ctx context.Context) error {
		call := c.svc.Messages.List(userID).MaxResults(clampMax(max))
		if includeSpamTrash {
			call = call.IncludeSpamTrash(true)
		} else {
			call = call.Q(queryExcludeSpamTrash)
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			return err
		}
		out, err = c.summaries(ctx, res.Messages)
		return err
	})
	return out, err
}

// Search returns the messages matching a Gmail search query.
func (c *Client) Search(ctx context.Context, query string, max int) ([]MessageSummary, error) {
	var out []MessageSummary
	err := c.observe(ctx, "search", func(ctx context.Context) error {
		var err error
		out, err = c.search(ctx, query, max)
		return err
	})
	return out, err
}

func (c *Client) search(ctx context.Context, query string, max int) ([]MessageSummary, error) {
	res, err := c.svc.Messages.List(userID).Q(query).MaxResults(clampMax(max)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return c.summaries(ctx, res.Messages)
}

// Count returns Gmail's result size estimate for a search query.
func (c *Client) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	err := c.observe(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = c.count(ctx, query)
		return err
	})
	return n, err
}

func (c *Client) count(ctx context.Context, query string) (int64, error) {
	call := c.svc.Messages.List(userID).MaxResults(1).Fields("resultSizeEstimate")
	if query != "" {
		call = call.Q(query)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	return res.ResultSizeEstimate, nil
}

// ListUnread returns unread messages.
func (c *Client) ListUnread(ctx context.Context, max int) ([]MessageSummary, error) {
	return c.Search(ctx, queryUnread, max)
}

// ListStarred returns starred messages.
func (c *Client) ListStarred(ctx context.Context, max int) ([]MessageSummary, error) {
	return c.Search(ctx, queryStarred, max)
}

// ListWithAttachments returns messages that carry attachments.
func (c *Client) ListWithAttachments(ctx context.Context, max int) ([]MessageSummary, error) {
	return c.Search(ctx, queryHasAttachment, max)
}

// ListFromSender returns messages sent by the given address or name.
func (c *Client) ListFromSender(ctx context.Context, sender string, max int) ([]MessageSummary, error) {
	q, err := senderQuery(sender)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, q, max)
}

// ListByDateRange returns messages received between start and end
// (YYYY-MM-DD).
func (c *Client) ListByDateRange(ctx context.Context, start, end string, max int) ([]MessageSummary, error) {
	q, err := dateRangeQuery(start, end)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, q, max)
}

// CountFromSender counts messages sent by the given address or name.
func (c *Client) CountFromSender(ctx context.Context, sender string) (int64, error) {
	q, err := senderQuery(sender)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx, q)
}

// CountInDateRange counts messages received between start and end.
func (c *Client) CountInDateRange(ctx context.Context, start, end string) (int64, error) {
	q, err := dateRangeQuery(start, end)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx, q)
}

// InboxStats counts all, unread and starred messages.
func (c *Client) InboxStats(ctx context.Context) (InboxStats, error) {
	var stats InboxStats
	err := c.observe(ctx, "inbox_stats", func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			stats.Total, err = c.count(ctx, "")
			return err
		})
		g.Go(func() (err error) {
			stats.Unread, err = c.count(ctx, queryUnread)
			return err
		})
		g.Go(func() (err error) {
			stats.Starred, err = c.count(ctx, queryStarred)
			return err
		})
		return g.Wait()
	})
	return stats, err
}

// GetMessage retrieves a message with its plain-text body.
func (c *Client) GetMessage(ctx context.Context, id string) (*MessageDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrInvalidArgument)
	}
	var detail *MessageDetail
	err := c.observe(ctx, "get_body", func(ctx context.Context) error {
		msg, err := c.svc.Messages.Get(userID, id).Format("full").Context(ctx).Do()
		if err != nil {
			return err
		}
		body, err := messageBody(msg)
		if err != nil {
			return err
		}
		detail = &MessageDetail{MessageSummary: summarize(msg), Body: body}
		return nil
	}, messageAttr(id))
	return detail, err
}

// GetBody returns the decoded plain-text body of a message.
func (c *Client) GetBody(ctx context.Context, id string) (string, error) {
	detail, err := c.GetMessage(ctx, id)
	if err != nil {
		return "", err
	}
	return detail.Body, nil
}

// summaries expands list references into metadata summaries, preserving
// the order of refs.
func (c *Client) summaries(ctx context.Context, refs []*gmail.Message) ([]MessageSummary, error) {
	out := make([]MessageSummary, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			msg, err := c.svc.Messages.Get(userID, ref.Id).
				Format("metadata").
				MetadataHeaders(metadataHeaders...).
				Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("failed to get message %s: %w", ref.Id, err)
			}
			out[i] = summarize(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(msg *gmail.Message) MessageSummary {
	return MessageSummary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		From:     HeaderValue(msg, "From"),
		To:       HeaderValue(msg, "To"),
		Subject:  HeaderValue(msg, "Subject"),
		Date:     HeaderValue(msg, "Date"),
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
		Unread:   slices.Contains(msg.LabelIds, LabelUnread),
		Starred:  slices.Contains(msg.LabelIds, LabelStarred),
	}
}
