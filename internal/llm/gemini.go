package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/teemow/inboxchat/internal/logging"
)

// Gemini talks to Google's Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    Config
	logger *slog.Logger
}

// NewGemini creates a Gemini model client.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cfg.Provider = ProviderGemini
	cfg = cfg.withDefaults()

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		cfg:    cfg,
		logger: cfg.Logger.With(logging.Provider(ProviderGemini), logging.Model(cfg.Model)),
	}, nil
}

func (g *Gemini) Provider() string { return ProviderGemini }
func (g *Gemini) Name() string     { return g.cfg.Model }

// Close closes the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Generate sends the transcript as chat history and the last user content
// as the new message.
func (g *Gemini) Generate(ctx context.Context, req *Request) (Reply, error) {
	model := g.client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(float32(g.cfg.Temperature))
	model.SetMaxOutputTokens(int32(g.cfg.MaxTokens))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	tools, err := geminiTools(req.Tools)
	if err != nil {
		return nil, err
	}
	model.Tools = tools

	contents := geminiContents(req.Messages)
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return nil, fmt.Errorf("gemini: transcript must end with a user or tool message")
	}

	chat := model.StartChat()
	chat.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	g.logger.Debug("sending request", "contents", len(contents), "tools", len(req.Tools))

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return geminiReply(resp)
}

// geminiContents converts the transcript, merging consecutive messages of
// the same role since Gemini expects alternating turns.
func geminiContents(msgs []Message) []*genai.Content {
	var out []*genai.Content
	appendParts := func(role string, parts ...genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			if m.Content != "" {
				appendParts("user", genai.Text(m.Content))
			}
		case RoleAssistant:
			var parts []genai.Part
			if m.Content != "" {
				parts = append(parts, genai.Text(m.Content))
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: c.Name, Args: c.Arguments})
			}
			appendParts("model", parts...)
		case RoleTool:
			if m.ToolResult == nil {
				continue
			}
			appendParts("user", genai.FunctionResponse{
				Name:     m.ToolResult.Name,
				Response: resultPayload(m.ToolResult),
			})
		}
	}
	return out
}

func geminiReply(resp *genai.GenerateContentResponse) (Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return nil, fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}

	var text strings.Builder
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args := p.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{
				ID:        "call_" + uuid.NewString()[:8],
				Name:      p.Name,
				Arguments: args,
			})
		}
	}

	if text.Len() == 0 && len(calls) == 0 {
		return nil, ErrEmptyResponse
	}
	return replyFrom(strings.TrimSpace(text.String()), calls), nil
}

func geminiTools(defs []ToolDefinition) ([]*genai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", d.Name, err)
			}
		}
		decl := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		// Gemini rejects object schemas without properties.
		if props, _ := schema["properties"].(map[string]any); len(props) > 0 {
			decl.Parameters = geminiSchema(schema)
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// geminiSchema converts a JSON schema object to Gemini's schema type.
func geminiSchema(s map[string]any) *genai.Schema {
	out := &genai.Schema{}
	if desc, ok := s["description"].(string); ok {
		out.Description = desc
	}

	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}

	if enum, ok := s["enum"].([]any); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				out.Enum = append(out.Enum, v)
			}
		}
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if ps, ok := p.(map[string]any); ok {
				out.Properties[name] = geminiSchema(ps)
			}
		}
	}
	if req, ok := s["required"].([]any); ok {
		for _, r := range req {
			if v, ok := r.(string); ok {
				out.Required = append(out.Required, v)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = geminiSchema(items)
	}
	return out
}
