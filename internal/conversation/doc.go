// Package conversation holds the in-memory transcript of a chat session and
// the document shape it is persisted as.
//
// A Session is an append-only list of Turns. User turns carry the text the
// user typed, assistant turns carry model output and the tool calls it
// requested, and tool turns carry exactly one ToolCall together with its
// result. Once a session has been closed it rejects further appends.
package conversation
