package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/teemow/inboxchat/internal/google"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

const stateCookie = "inboxchat_oauth_state"

// handleLogin redirects to the Google consent page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	auth := s.cfg.Context.Authenticator()
	if auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google OAuth credentials are not configured")
		return
	}

	state, err := google.NewState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, auth.AuthURL(state), http.StatusFound)
}

// handleCallback exchanges the authorization code, caches the token and
// returns to the chat page.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	auth := s.cfg.Context.Authenticator()
	if auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google OAuth credentials are not configured")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.cfg.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultDenied)
		writeError(w, http.StatusBadRequest, "authorization failed: "+e)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		s.cfg.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultInvalidState)
		writeError(w, http.StatusBadRequest, "invalid OAuth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/auth", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	if _, err := auth.Exchange(r.Context(), code); err != nil {
		s.cfg.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultError)
		s.logger.Warn("OAuth code exchange failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.cfg.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultSuccess)
	s.cfg.Context.ResetMailbox()
	s.logger.Info("Google account authorized")
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout forgets the cached token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth := s.cfg.Context.Authenticator()
	if auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google OAuth credentials are not configured")
		return
	}
	if err := auth.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.cfg.Context.ResetMailbox()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// validateBaseURL accepts https URLs and plain http on loopback hosts. It
// reports whether the URL is https.
func validateBaseURL(baseURL string) (bool, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false, fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return true, nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return false, fmt.Errorf("base URL must use HTTPS unless it is on localhost (got: %s)", baseURL)
		}
		return false, nil
	default:
		return false, fmt.Errorf("invalid base URL scheme %q: must be http (localhost only) or https", u.Scheme)
	}
}
