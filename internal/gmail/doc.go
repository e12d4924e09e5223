// Package gmail adapts the Gmail API to the mailbox operations the
// assistant exposes as tools.
//
// The Client covers:
//   - Listing and searching (recent, unread, starred, by sender, by date
//     range, with attachments) returning metadata summaries
//   - Counting via Gmail's result size estimate, including inbox statistics
//   - Reading a message's plain-text body, with an HTML fallback
//   - Sending and replying (RFC 2822 messages, threaded replies)
//   - Marking read or unread, trashing and labelling messages
//
// Every call is traced and counted through the instrumentation package.
// Errors are mapped onto ErrAuthRequired, ErrNotFound, ErrInvalidArgument
// or a *ServiceError so callers can react without inspecting HTTP status
// codes.
//
// Example usage:
//
//	hc, err := auth.HTTPClient(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewFromHTTPClient(ctx, hc, metrics)
//	if err != nil {
//	    return err
//	}
//	unread, err := client.ListUnread(ctx, 10)
package gmail
