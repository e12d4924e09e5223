package tools

import (
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the registered tools as an MCP server. Handlers run
// with the registry's instrumentation.
func (r *Registry) MCPServer(name, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(true),
	)
	for _, t := range r.Tools() {
		s.AddTool(t.Definition, t.Handler)
	}
	return s
}
