package google

import gmail "google.golang.org/api/gmail/v1"

// GmailScopes are the OAuth scopes the assistant needs to read, send and
// modify mail.
var GmailScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

// ReadOnlyScopes are requested when the assistant runs with mutating tools
// disabled.
var ReadOnlyScopes = []string{
	gmail.GmailReadonlyScope,
}

// ScopesFor returns the scopes for the given mode.
func ScopesFor(readOnly bool) []string {
	if readOnly {
		return ReadOnlyScopes
	}
	return GmailScopes
}
