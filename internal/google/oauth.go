package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// LoadConfig reads an OAuth client credential file downloaded from the
// Google Cloud console (web or installed application). A non-empty
// redirectURL overrides the one in the file.
func LoadConfig(credentialsFile, redirectURL string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read OAuth credentials %s: %w", credentialsFile, err)
	}

	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OAuth credentials: %w", err)
	}
	if redirectURL != "" {
		conf.RedirectURL = redirectURL
	}
	return conf, nil
}

// Authenticator runs the OAuth consent flow and hands out authenticated
// HTTP clients backed by the token cache.
type Authenticator struct {
	config *oauth2.Config
	cache  *TokenCache
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(config *oauth2.Config, cache *TokenCache) *Authenticator {
	return &Authenticator{config: config, cache: cache}
}

// Cache returns the token cache.
func (a *Authenticator) Cache() *TokenCache {
	return a.cache
}

// AuthURL returns the consent page URL. Offline access and a forced consent
// prompt make Google return a refresh token every time.
func (a *Authenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token and caches it.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := a.cache.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// HasToken reports whether a cached token exists.
func (a *Authenticator) HasToken() bool {
	return a.cache.Exists()
}

// Logout forgets the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}

// TokenSource returns a refreshing token source for the cached token.
// Refreshed tokens are written back to the cache. Returns ErrNoToken when
// the user has not authenticated yet.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.cache.Load()
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		base:  a.config.TokenSource(ctx, tok),
		cache: a.cache,
		last:  tok.AccessToken,
	}, nil
}

// HTTPClient returns an HTTP client that authenticates with the cached token.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
// seen with long-lived Google API connections.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   &http.Transport{ForceAttemptHTTP2: false, Proxy: http.ProxyFromEnvironment},
		},
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate OAuth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
