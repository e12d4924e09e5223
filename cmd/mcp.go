package cmd

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Gmail tools over MCP stdio",
		Long: `Expose the Gmail tools to an MCP client (for example an editor or a
desktop assistant) over standard input and output. Sign in first with
` + "`inboxchat auth login`" + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			srv := a.registry.MCPServer("inboxchat", version)
			if err := mcpserver.ServeStdio(srv); err != nil {
				return fmt.Errorf("server stopped with error: %w", err)
			}
			return nil
		},
	}
}
