// Package gmail_tools exposes the user's mailbox as tools the assistant
// can call.
//
// Read tools:
//   - gmail_get_recent_emails, gmail_search_emails, gmail_get_unread_emails
//   - gmail_get_emails_from_sender, gmail_get_emails_by_date_range
//   - gmail_get_emails_with_attachments, gmail_get_starred_emails
//   - gmail_get_email_body, gmail_get_email_labels
//   - gmail_count_emails, gmail_count_emails_from_sender,
//     gmail_count_emails_in_date_range, gmail_get_inbox_stats
//
// Write tools (omitted in read-only mode):
//   - gmail_send_email, gmail_reply_to_email
//   - gmail_mark_as_read, gmail_mark_as_unread
//   - gmail_delete_email (moves to trash), gmail_add_label_to_email
//
// Every tool answers with a JSON object carrying a "success" field. Failures
// from Gmail come back as error results the model can read and react to,
// except authentication failures, which surface as tools.ErrAuthRequired.
package gmail_tools
