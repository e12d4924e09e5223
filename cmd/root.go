package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/config"
)

// rootCmd represents the base command for the inboxchat application
var rootCmd = &cobra.Command{
	Use:   "inboxchat",
	Short: "Chat with an assistant that reads and manages your Gmail",
	Long: `inboxchat is a conversational assistant for your Gmail inbox. It answers
questions about your mail and can send, reply, label and trash messages by
calling Gmail on your behalf.

It can run as:
  - A web chat server (default)
  - A terminal chat
  - An MCP (Model Context Protocol) server exposing the Gmail tools`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(".env")
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxchat version %s\n" .Version}}`)

	// If no subcommand is provided, start the web chat
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
