package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/tools/common"
)

var (
	// ErrMalformedCall is returned for calls naming an unknown tool or
	// carrying arguments that do not satisfy the tool's schema. The handler
	// is not invoked.
	ErrMalformedCall = errors.New("malformed tool call")

	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrAuthRequired is returned by handlers whose backing service needs
	// the user to authenticate again.
	ErrAuthRequired = errors.New("authentication required")
)

// Tool pairs a declaration with its handler.
type Tool struct {
	Definition mcp.Tool
	Handler    mcpserver.ToolHandlerFunc
}

// Definition is the provider-neutral description of a tool for a model's
// tool catalog.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Result is the outcome of a tool call.
type Result struct {
	Text    string
	IsError bool
}

// Registry maps stable tool names to tools. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]*Tool
	order       []string
	instruments common.Instruments
}

// Option configures a Registry.
type Option func(*Registry)

// WithInstruments wraps every registered handler with metrics, tracing and
// audit logging.
func WithInstruments(in common.Instruments) Option {
	return func(r *Registry) {
		r.instruments = in
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool mcp.Tool, handler mcpserver.ToolHandlerFunc) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	r.tools[tool.Name] = &Tool{
		Definition: tool,
		Handler:    common.InstrumentedToolHandler(tool, r.instruments, handler),
	}
	r.order = append(r.order, tool.Name)
	return nil
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tools[name])
	}
	return out
}

// Definitions returns the catalog of registered tools in registration
// order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name].Definition
		defs = append(defs, Definition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  parameterSchema(t),
		})
	}
	return defs
}

// Call validates args against the named tool's schema and runs its
// handler. A handler result flagged as error is returned as a Result with
// IsError set and a nil error; a Go error from the handler is returned
// as is.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown tool %q", ErrMalformedCall, name)
	}

	if err := validateArgs(tool.Definition, args); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrMalformedCall, name, err)
	}

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := tool.Handler(ctx, req)
	if err != nil {
		return Result{Text: err.Error(), IsError: true}, err
	}
	return Result{Text: common.ResultText(res), IsError: res != nil && res.IsError}, nil
}
