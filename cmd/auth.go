package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/gmail"
	"github.com/teemow/inboxchat/internal/google"
	"github.com/teemow/inboxchat/internal/instrumentation"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google account connection",
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthLogoutCmd(), newAuthStatusCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize inboxchat to access Gmail",
		Long: `Print the Google consent URL. After approving access, Google redirects to
the configured redirect URL. Paste the code or the whole URL you were
redirected to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))
			if a.auth == nil {
				return fmt.Errorf("Google OAuth client not configured: download the OAuth client JSON to %s or set --credentials", a.cfg.Google.CredentialsFile)
			}

			state, err := google.NewState()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Open this URL in your browser and approve access:\n\n  %s\n\n", a.auth.AuthURL(state))
			fmt.Fprint(out, "Paste the authorization code or the redirect URL: ")

			code, err := readAuthCode(cmd.InOrStdin(), state)
			if err != nil {
				return err
			}
			if _, err := a.auth.Exchange(ctx, code); err != nil {
				a.instr.Metrics().RecordOAuthAuth(ctx, instrumentation.OAuthResultError)
				return err
			}
			a.instr.Metrics().RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
			fmt.Fprintf(out, "Authorized. Token saved to %s\n", a.auth.Cache().Path())
			return nil
		},
	}
}

// readAuthCode reads one line and extracts the authorization code. A pasted
// redirect URL must carry the expected state.
func readAuthCode(in io.Reader, state string) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}
	return parseAuthCode(line, state)
}

func parseAuthCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("no authorization code given")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	raw := input
	if i := strings.Index(input, "?"); i >= 0 {
		raw = input[i+1:]
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization failed: %s", e)
	}
	if got := q.Get("state"); got != state {
		return "", fmt.Errorf("OAuth state mismatch")
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL has no code")
	}
	return code, nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached Google token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			cache := google.NewTokenCache(a.cfg.Google.TokenFile)
			if err := cache.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a Google account is connected",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Credentials: %s\n", a.cfg.Google.CredentialsFile)
			fmt.Fprintf(out, "Token file:  %s\n", a.cfg.Google.TokenFile)
			if a.auth == nil {
				fmt.Fprintln(out, "Status:      OAuth client not configured")
				return nil
			}
			if !a.sc.HasToken() {
				fmt.Fprintln(out, "Status:      not signed in (run `inboxchat auth login`)")
				return nil
			}

			mb, err := a.sc.Mailbox(ctx)
			if err == nil {
				var stats gmail.InboxStats
				if stats, err = mb.InboxStats(ctx); err == nil {
					fmt.Fprintf(out, "Status:      connected (%d messages, %d unread)\n", stats.Total, stats.Unread)
					return nil
				}
			}
			fmt.Fprintf(out, "Status:      token cached but Gmail rejected it: %v\n", err)
			return nil
		},
	}
}
