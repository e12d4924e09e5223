// Package google handles OAuth2 for the Gmail API.
//
// The client credential file comes from the Google Cloud console. The
// Authenticator builds the consent URL, exchanges the returned code and
// keeps the resulting token in a JSON file under the user cache directory.
// Refreshed tokens are written back to that file. When the cache is empty
// or the refresh token has been revoked the user has to run the consent
// flow again, either through the web UI (/auth/login) or with
// "inboxchat auth login".
package google
