package gmail

import (
	"context"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// MarkRead removes the UNREAD label from a message.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.modify(ctx, "mark_read", id, nil, []string{LabelUnread})
}

// MarkUnread adds the UNREAD label to a message.
func (c *Client) MarkUnread(ctx context.Context, id string) error {
	return c.modify(ctx, "mark_unread", id, []string{LabelUnread}, nil)
}

// AddLabel applies a label to a message. label may be a label id or a
// label name; names are resolved case insensitively.
func (c *Client) AddLabel(ctx context.Context, id, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidArgument)
	}
	labelID, err := c.resolveLabel(ctx, label)
	if err != nil {
		return err
	}
	return c.modify(ctx, "add_label", id, []string{labelID}, nil)
}

func (c *Client) modify(ctx context.Context, operation, id string, add, remove []string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidArgument)
	}
	return c.observe(ctx, operation, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(userID, id, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		return err
	}, messageAttr(id))
}

// Trash moves a message to the trash. Gmail deletes trashed messages
// permanently after 30 days.
func (c *Client) Trash(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidArgument)
	}
	return c.observe(ctx, "trash", func(ctx context.Context) error {
		_, err := c.svc.Messages.Trash(userID, id).Context(ctx).Do()
		return err
	}, messageAttr(id))
}

// ListLabels returns every label of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	var out []Label
	err := c.observe(ctx, "list_labels", func(ctx context.Context) error {
		var err error
		out, err = c.listLabels(ctx)
		return err
	})
	return out, err
}

func (c *Client) listLabels(ctx context.Context) ([]Label, error) {
	res, err := c.svc.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]Label, 0, len(res.Labels))
	for _, l := range res.Labels {
		out = append(out, Label{
			ID:             l.Id,
			Name:           l.Name,
			Type:           l.Type,
			MessagesTotal:  l.MessagesTotal,
			MessagesUnread: l.MessagesUnread,
		})
	}
	return out, nil
}

func (c *Client) resolveLabel(ctx context.Context, label string) (string, error) {
	var id string
	err := c.observe(ctx, "resolve_label", func(ctx context.Context) error {
		labels, err := c.listLabels(ctx)
		if err != nil {
			return err
		}
		for _, l := range labels {
			if l.ID == label {
				id = l.ID
				return nil
			}
		}
		for _, l := range labels {
			if strings.EqualFold(l.Name, label) {
				id = l.ID
				return nil
			}
		}
		return fmt.Errorf("label %q: %w", label, ErrNotFound)
	})
	return id, err
}
