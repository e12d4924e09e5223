package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/common"
	"github.com/teemow/inboxchat/internal/tools/gmail_tools"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools available to the assistant",
	}
	cmd.AddCommand(newToolsDocsCmd())
	return cmd
}

func newToolsDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate tool documentation",
		Long: `Generate markdown documentation for all tools the assistant can call.
The documentation is built from the registered tool definitions, so it is
always in sync with the implementation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runToolsDocs(outputFile string) error {
	// Documentation needs the definitions only, not a signed-in mailbox.
	sc := server.NewServerContext(context.Background(), nil, nil, nil)
	defer func() {
		_ = sc.Shutdown()
	}()

	registry := tools.NewRegistry()
	if err := gmail_tools.RegisterGmailTools(registry, sc, false); err != nil {
		return fmt.Errorf("failed to register Gmail tools: %w", err)
	}

	defs := make([]mcp.Tool, 0, registry.Len())
	for _, t := range registry.Tools() {
		defs = append(defs, t.Definition)
	}
	markdown := generateToolsMarkdown(defs)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

func generateToolsMarkdown(defs []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# Tools Reference\n\n")
	sb.WriteString("The assistant answers questions about your inbox by calling these tools.\n")
	sb.WriteString("The same tools are served over MCP by `inboxchat mcp`.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	byCategory := groupToolsByCategory(defs)
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range categories {
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", category, anchor))
	}
	sb.WriteString("\n")

	sb.WriteString("## Read-only Mode\n\n")
	sb.WriteString("With `--read-only` the modifying tools are not registered and the Google\n")
	sb.WriteString("token is requested with the `gmail.readonly` scope only.\n\n")

	for _, category := range categories {
		categoryTools := byCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		sb.WriteString(fmt.Sprintf("## %s\n\n", category))
		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func groupToolsByCategory(defs []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)
	for _, tool := range defs {
		category := toolCategory(tool)
		categories[category] = append(categories[category], tool)
	}
	return categories
}

func toolCategory(tool mcp.Tool) string {
	if common.Mutating(tool) {
		return "Modifying Mail"
	}
	return "Reading Mail"
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))
	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			propMap, ok := tool.InputSchema.Properties[name].(map[string]any)
			if !ok {
				continue
			}

			requiredStr := "optional"
			if contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}

			sb.WriteString(fmt.Sprintf("- `%s` (%s, %s): ", name, getPropertyType(propMap), requiredStr))
			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
