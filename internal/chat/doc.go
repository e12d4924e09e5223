// Package chat is the runtime between the user interfaces and the agent.
//
// A Manager owns one Conversation per client. A Conversation holds the open
// session and processes one user message at a time. Ending a conversation
// writes the session to the store once and starts a fresh session with a new
// id; if the write fails the session stays open so the user can retry.
//
// The Manager also saves open conversations on shutdown and expires
// conversations that have been idle for too long.
package chat
