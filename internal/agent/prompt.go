package agent

import (
	"strings"
	"time"

	"github.com/teemow/inboxchat/internal/tools"
)

const promptHeader = `You are an assistant that manages the user's Gmail inbox. You can call the following tools:
`

const promptInstructions = `
Instructions:
1. Understand the request and remember earlier messages in this conversation.
2. Pick the tool or tools that accomplish the task. Use several tools in sequence when needed.
3. Reuse message ids returned by earlier tool calls when reading, replying to or modifying an email.
4. Use Gmail query syntax when searching, e.g. "from:alice@example.com" or "subject:meeting".
5. When sending an email without a subject, choose one from the context. If the user gave no content for the body, ask what it should say.
6. Dates are YYYY-MM-DD. The end date of a range is exclusive.
7. Report clearly whether each operation succeeded or failed. If a tool reports that authentication is required, tell the user to sign in to Google again.

Give concise, natural answers after using tools.`

// SystemPrompt builds the instructions sent with every request. Each tool is
// listed with the first sentence of its description.
func SystemPrompt(defs []tools.Definition, now time.Time) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, d := range defs {
		b.WriteString("- ")
		b.WriteString(d.Name)
		if summary := firstSentence(d.Description); summary != "" {
			b.WriteString(": ")
			b.WriteString(summary)
		}
		b.WriteByte('\n')
	}
	b.WriteString(promptInstructions)
	b.WriteString("\n\nToday is ")
	b.WriteString(now.Format("2006-01-02 (Monday)"))
	b.WriteString(".")
	return b.String()
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
