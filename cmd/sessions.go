package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Review saved chat sessions",
	}
	cmd.AddCommand(newSessionsListCmd(), newSessionsShowCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{store: true})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			sums, err := a.store.List(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOut(cmd.OutOrStdout(), sums)
			}
			renderSummaries(cmd.OutOrStdout(), sums)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "Maximum number of sessions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the transcript of a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{store: true})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			doc, err := a.store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOut(cmd.OutOrStdout(), doc)
			}
			renderDocument(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored document as JSON")
	return cmd
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSummaries(w io.Writer, sums []conversation.Summary) {
	if len(sums) == 0 {
		fmt.Fprintln(w, "No saved sessions.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "STARTED", "DURATION", "MESSAGES")
	for _, s := range sums {
		t.Row(
			s.SessionID,
			s.SessionStart.Local().Format("2006-01-02 15:04"),
			s.SessionEnd.Sub(s.SessionStart).Round(time.Second).String(),
			strconv.Itoa(s.TotalMessages),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func renderDocument(w io.Writer, doc *conversation.Document) {
	fmt.Fprintf(w, "Session %s\n", doc.SessionID)
	fmt.Fprintf(w, "%s, %s, %d messages\n\n", doc.SessionStart.Local().Format("2006-01-02 15:04"), doc.Duration, doc.TotalMessages)

	for _, e := range doc.History {
		switch e.Type {
		case conversation.TypeHuman:
			fmt.Fprintf(w, "%s %s\n", promptStyle.Render("you>"), e.Content)
		case conversation.TypeAI:
			if len(e.ToolCalls) > 0 {
				names := make([]string, len(e.ToolCalls))
				for i, c := range e.ToolCalls {
					names[i] = c.Name
				}
				fmt.Fprintln(w, toolStyle.Render("  calling "+strings.Join(names, ", ")))
			}
			if e.Content == "" {
				continue
			}
			if e.IsError {
				fmt.Fprintln(w, errorStyle.Render(e.Content))
			} else {
				fmt.Fprintf(w, "%s %s\n", assistantStyle.Render("assistant>"), e.Content)
			}
		case conversation.TypeTool:
			fmt.Fprintln(w, toolStyle.Render(fmt.Sprintf("  %s -> %s", e.ToolName, truncate(e.Content, 120))))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
