package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/conversation"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat about your inbox in the terminal",
		Long: `Start an interactive chat in the terminal.

Commands:
  /end   Save the current session and start a new one
  /quit  Save the current session and exit
  /help  Show this help`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cmd, appOptions{agent: true, store: true})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			manager := chat.NewManager(chat.Config{
				Runner:      a.agent,
				Store:       a.store,
				IdleTimeout: -1,
				Metrics:     a.instr.Metrics(),
				Logger:      a.logger,
			})
			defer manager.Stop()

			r := newREPL(manager.Conversation("cli"), cmd.InOrStdin(), cmd.OutOrStdout())
			if !a.sc.HasToken() {
				r.notice("No Google account connected. Run `inboxchat auth login` to sign in.")
			}
			return r.run(ctx)
		},
	}
}

var (
	promptStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

const replHelp = `/end   save this session and start a new one
/quit  save this session and exit
/help  show this help`

// repl is the terminal chat loop.
type repl struct {
	conv *chat.Conversation
	in   io.Reader
	out  io.Writer
}

func newREPL(conv *chat.Conversation, in io.Reader, out io.Writer) *repl {
	return &repl{conv: conv, in: in, out: out}
}

func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 64<<10), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	fmt.Fprintf(r.out, "Ask about your inbox. Type /help for commands.\n")
	for {
		fmt.Fprint(r.out, promptStyle.Render("you> "))

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return r.end(context.WithoutCancel(ctx))
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(r.out)
			if err := <-readErr; err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			return r.end(ctx)
		}

		switch cmd := strings.TrimSpace(line); cmd {
		case "":
			continue
		case "/quit", "/exit":
			if err := r.end(ctx); err != nil {
				r.error(err.Error())
				continue
			}
			return nil
		case "/end":
			if err := r.end(ctx); err != nil {
				r.error(err.Error())
			}
		case "/help":
			fmt.Fprintln(r.out, replHelp)
		default:
			r.send(ctx, cmd)
		}
	}
}

func (r *repl) send(ctx context.Context, text string) {
	observe := func(t conversation.Turn) {
		switch t.Role {
		case conversation.RoleAssistant:
			for _, c := range t.ToolCalls {
				fmt.Fprintln(r.out, toolStyle.Render("  calling "+c.Name))
			}
		case conversation.RoleTool:
			if t.ToolCall != nil && t.ToolCall.IsError {
				fmt.Fprintln(r.out, toolStyle.Render("  "+t.ToolCall.Name+" failed"))
			}
		}
	}

	reply, err := r.conv.Send(ctx, text, observe)
	if reply == nil {
		if err != nil {
			r.error(err.Error())
		}
		return
	}
	if err != nil {
		r.error(reply.Text)
	} else {
		fmt.Fprintf(r.out, "%s %s\n", assistantStyle.Render("assistant>"), reply.Text)
	}
	if reply.AuthRequired {
		r.notice(chat.AuthNotice + " Run `inboxchat auth login`.")
	}
}

// end saves the session. A failed save keeps the session open.
func (r *repl) end(ctx context.Context) error {
	res, err := r.conv.End(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		r.notice("Session could not be saved; it is still open. Try /end again.")
		return fmt.Errorf("saving session: %w", err)
	}
	if res.Saved {
		r.notice(fmt.Sprintf("Saved session %s (%d messages, %s).", res.SessionID, res.TotalMessages, res.Duration))
	}
	return nil
}

func (r *repl) notice(msg string) {
	fmt.Fprintln(r.out, noticeStyle.Render(msg))
}

func (r *repl) error(msg string) {
	fmt.Fprintln(r.out, errorStyle.Render(msg))
}
