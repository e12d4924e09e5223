// Package tools holds the registry of tools the assistant's model may
// call.
//
// Tools are declared with mcp-go (mcp.NewTool and friends) so the same
// catalog can be handed to a language model as function declarations and
// served to MCP clients over stdio. The registry validates every call
// against the declared schema before a handler runs; unknown tools and
// missing or mistyped arguments surface as ErrMalformedCall.
//
// Tool groups live in sub-packages (gmail_tools) and register themselves
// into a Registry.
package tools
