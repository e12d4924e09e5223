package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testCredentials = `{
  "installed": {
    "client_id": "test-client.apps.googleusercontent.com",
    "client_secret": "test-secret",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

func writeCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(testCredentials), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeCredentials(t)

	conf, err := LoadConfig(path, "", GmailScopes)
	require.NoError(t, err)
	assert.Equal(t, "test-client.apps.googleusercontent.com", conf.ClientID)
	assert.Equal(t, "http://localhost", conf.RedirectURL)
	assert.Equal(t, GmailScopes, conf.Scopes)

	conf, err = LoadConfig(path, "http://localhost:8080/auth/callback", ReadOnlyScopes)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/auth/callback", conf.RedirectURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), "", GmailScopes)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{}"), 0600))
	_, err = LoadConfig(bad, "", GmailScopes)
	assert.Error(t, err)
}

func TestScopesFor(t *testing.T) {
	assert.Len(t, ScopesFor(false), 3)
	assert.Equal(t, ReadOnlyScopes, ScopesFor(true))
}

func TestAuthenticator_AuthURL(t *testing.T) {
	conf, err := LoadConfig(writeCredentials(t), "http://localhost:8080/auth/callback", GmailScopes)
	require.NoError(t, err)
	auth := NewAuthenticator(conf, NewTokenCache(filepath.Join(t.TempDir(), "token.json")))

	u, err := url.Parse(auth.AuthURL("xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Contains(t, q.Get("scope"), "gmail.modify")
	assert.Equal(t, "http://localhost:8080/auth/callback", q.Get("redirect_uri"))
}

func TestAuthenticator_ExchangeCachesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	conf := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		Scopes:       GmailScopes,
	}
	cache := NewTokenCache(filepath.Join(t.TempDir(), "nested", "token.json"))
	auth := NewAuthenticator(conf, cache)
	assert.False(t, auth.HasToken())

	tok, err := auth.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.True(t, auth.HasToken())

	cached, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", cached.RefreshToken)

	client, err := auth.HTTPClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)

	require.NoError(t, auth.Logout())
	assert.False(t, auth.HasToken())
}

func TestAuthenticator_TokenSourceWithoutToken(t *testing.T) {
	auth := NewAuthenticator(&oauth2.Config{}, NewTokenCache(filepath.Join(t.TempDir(), "token.json")))

	_, err := auth.TokenSource(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = auth.HTTPClient(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

type staticSource struct{ tok *oauth2.Token }

func (s *staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestPersistingTokenSource_SavesRefreshedToken(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	base := &staticSource{tok: &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}}
	ts := &persistingTokenSource{base: base, cache: cache, last: "old"}

	_, err := ts.Token()
	require.NoError(t, err)
	assert.False(t, cache.Exists(), "unchanged token should not be rewritten")

	base.tok = &oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	_, err = ts.Token()
	require.NoError(t, err)

	saved, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", saved.AccessToken)
}
