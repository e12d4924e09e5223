package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// rfc2822 holds the headers and body of an outgoing plain-text message.
type rfc2822 struct {
	To         string
	Subject    string
	InReplyTo  string
	References string
	Body       string
}

// Raw renders the message and encodes it the way messages.send expects.
func (m rfc2822) Raw() string {
	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(m.To)
	b.WriteString("\r\n")

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(m.Subject))
	b.WriteString("\r\n")

	if m.InReplyTo != "" {
		b.WriteString("In-Reply-To: ")
		b.WriteString(m.InReplyTo)
		b.WriteString("\r\n")
	}
	if m.References != "" {
		b.WriteString("References: ")
		b.WriteString(m.References)
		b.WriteString("\r\n")
	}

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// encodeRFC2047 encodes non-ASCII header values (umlauts, emoji) as
// RFC 2047 encoded words. ASCII values are returned unchanged.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// Send sends a plain-text email. to may hold several comma separated
// addresses.
func (c *Client) Send(ctx context.Context, to, subject, body string) (*SentMessage, error) {
	recipients, err := parseRecipients(to)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidArgument)
	}

	msg := rfc2822{To: recipients, Subject: subject, Body: body}

	var sent *SentMessage
	err = c.observe(ctx, "send", func(ctx context.Context) error {
		res, err := c.svc.Messages.Send(userID, &gmail.Message{Raw: msg.Raw()}).Context(ctx).Do()
		if err != nil {
			return err
		}
		sent = &SentMessage{ID: res.Id, ThreadID: res.ThreadId}
		return nil
	})
	return sent, err
}

// Reply answers the message with the given id in the same thread. The
// reply goes to the original Reply-To address, or From when unset.
func (c *Client) Reply(ctx context.Context, id, body string) (*SentMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidArgument)
	}

	var sent *SentMessage
	err := c.observe(ctx, "reply", func(ctx context.Context) error {
		orig, err := c.svc.Messages.Get(userID, id).
			Format("metadata").
			MetadataHeaders("From", "Reply-To", "Subject", "Message-ID", "References").
			Context(ctx).Do()
		if err != nil {
			return err
		}

		msg, err := replyTo(orig, body)
		if err != nil {
			return err
		}

		res, err := c.svc.Messages.Send(userID, &gmail.Message{Raw: msg.Raw(), ThreadId: orig.ThreadId}).Context(ctx).Do()
		if err != nil {
			return err
		}
		sent = &SentMessage{ID: res.Id, ThreadID: res.ThreadId}
		return nil
	}, messageAttr(id))
	return sent, err
}

// replyTo builds the reply to orig with threading headers set.
func replyTo(orig *gmail.Message, body string) (rfc2822, error) {
	to := HeaderValue(orig, "Reply-To")
	if to == "" {
		to = HeaderValue(orig, "From")
	}
	if to == "" {
		return rfc2822{}, fmt.Errorf("%w: original message has no sender", ErrInvalidArgument)
	}

	messageID := HeaderValue(orig, "Message-ID")
	references := strings.TrimSpace(HeaderValue(orig, "References") + " " + messageID)

	return rfc2822{
		To:         to,
		Subject:    replySubject(HeaderValue(orig, "Subject")),
		InReplyTo:  messageID,
		References: references,
		Body:       body,
	}, nil
}

// replySubject prefixes "Re: " unless the subject already carries it.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

func parseRecipients(to string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: at least one recipient is required", ErrInvalidArgument)
	}
	addrs, err := mail.ParseAddressList(to)
	if err != nil {
		return "", fmt.Errorf("%w: invalid recipient %q: %v", ErrInvalidArgument, to, err)
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return strings.Join(out, ", "), nil
}
