package gmail

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	gmail "google.golang.org/api/gmail/v1"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// messageBody returns the first text/plain part of msg, falling back to the
// text of the first text/html part. A message with neither yields "".
func messageBody(msg *gmail.Message) (string, error) {
	if data := firstPart(msg.Payload, mimeTextPlain); data != "" {
		return decodeBody(data)
	}
	if data := firstPart(msg.Payload, mimeTextHTML); data != "" {
		raw, err := decodeBody(data)
		if err != nil {
			return "", err
		}
		return htmlToText(raw), nil
	}
	return "", nil
}

func firstPart(root *gmail.MessagePart, mimeType string) string {
	var found string
	walkParts(root, func(part *gmail.MessagePart) {
		if found == "" && part.Filename == "" && strings.HasPrefix(part.MimeType, mimeType) &&
			part.Body != nil && part.Body.Data != "" {
			found = part.Body.Data
		}
	})
	return found
}

// walkParts visits part and all of its descendants depth first.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// decodeBody decodes base64url body data. Gmail omits padding on some
// payloads, so both padded and raw forms are accepted.
func decodeBody(data string) (string, error) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("failed to decode message body")
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// blocks that start a new line when rendered
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "table": true,
}

// htmlToText extracts readable text from an HTML body, dropping scripts and
// styles.
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return src
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	return strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))
}
