package gmail_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/gmail"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/common"
)

func messageIDOption(desc string) mcp.ToolOption {
	return mcp.WithString("message_id",
		mcp.Required(),
		mcp.Description(desc),
	)
}

func registerWriteTools(r *tools.Registry, h *handlers) error {
	defs := []struct {
		tool    mcp.Tool
		handler func(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error)
	}{
		{
			mcp.NewTool("gmail_send_email",
				mcp.WithDescription("Send a plain-text email"),
				mcp.WithString("to",
					mcp.Required(),
					mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
				),
				mcp.WithString("subject",
					mcp.Description("Email subject, may be empty"),
				),
				mcp.WithString("body",
					mcp.Required(),
					mcp.Description("Email body content"),
				),
				mcp.WithDestructiveHintAnnotation(false),
			),
			sendEmail,
		},
		{
			mcp.NewTool("gmail_reply_to_email",
				mcp.WithDescription("Reply to a specific email in its thread"),
				messageIDOption("The id of the message to reply to"),
				mcp.WithString("reply_body",
					mcp.Required(),
					mcp.Description("Reply text"),
				),
				mcp.WithDestructiveHintAnnotation(false),
			),
			replyToEmail,
		},
		{
			mcp.NewTool("gmail_mark_as_read",
				mcp.WithDescription("Mark an email as read"),
				messageIDOption("The id of the message to mark as read"),
				mcp.WithIdempotentHintAnnotation(true),
			),
			markAsRead,
		},
		{
			mcp.NewTool("gmail_mark_as_unread",
				mcp.WithDescription("Mark an email as unread"),
				messageIDOption("The id of the message to mark as unread"),
				mcp.WithIdempotentHintAnnotation(true),
			),
			markAsUnread,
		},
		{
			mcp.NewTool("gmail_delete_email",
				mcp.WithDescription("Move an email to the trash"),
				messageIDOption("The id of the message to delete"),
				mcp.WithDestructiveHintAnnotation(true),
			),
			deleteEmail,
		},
		{
			mcp.NewTool("gmail_add_label_to_email",
				mcp.WithDescription("Add a label to an email. Use gmail_get_email_labels to find label ids."),
				messageIDOption("The id of the message to label"),
				mcp.WithString("label_id",
					mcp.Required(),
					mcp.Description("Label id (e.g., 'STARRED', 'IMPORTANT', 'Label_12') or label name"),
				),
				mcp.WithIdempotentHintAnnotation(true),
			),
			addLabelToEmail,
		},
	}

	for _, d := range defs {
		if err := r.Register(d.tool, h.mailboxHandler(d.handler)); err != nil {
			return err
		}
	}
	return nil
}

func sendEmail(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	to := common.StringArg(args, "to")
	body, _ := args["body"].(string)
	sent, err := mb.Send(ctx, to, common.StringArg(args, "subject"), body)
	if err != nil {
		return nil, err
	}
	return actionResult{Success: true, MessageID: sent.ID, ThreadID: sent.ThreadID, Message: "Email sent to " + to}, nil
}

func replyToEmail(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	body, _ := args["reply_body"].(string)
	sent, err := mb.Reply(ctx, common.StringArg(args, "message_id"), body)
	if err != nil {
		return nil, err
	}
	return actionResult{Success: true, MessageID: sent.ID, ThreadID: sent.ThreadID, Message: "Reply sent successfully"}, nil
}

func markAsRead(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	id := common.StringArg(args, "message_id")
	if err := mb.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return actionResult{Success: true, MessageID: id, Message: "Marked as read"}, nil
}

func markAsUnread(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	id := common.StringArg(args, "message_id")
	if err := mb.MarkUnread(ctx, id); err != nil {
		return nil, err
	}
	return actionResult{Success: true, MessageID: id, Message: "Marked as unread"}, nil
}

func deleteEmail(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	id := common.StringArg(args, "message_id")
	if err := mb.Trash(ctx, id); err != nil {
		return nil, err
	}
	return actionResult{Success: true, MessageID: id, Message: "Moved to trash"}, nil
}

func addLabelToEmail(ctx context.Context, mb gmail.Mailbox, args map[string]any) (any, error) {
	id, label := common.StringArg(args, "message_id"), common.StringArg(args, "label_id")
	if err := mb.AddLabel(ctx, id, label); err != nil {
		return nil, err
	}
	return actionResult{Success: true, MessageID: id, Message: "Label " + label + " added"}, nil
}
