package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teemow/inboxchat/internal/logging"
)

// Anthropic talks to the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
	cfg    Config
	logger *slog.Logger
}

// NewAnthropic creates an Anthropic model client.
func NewAnthropic(cfg Config) *Anthropic {
	cfg.Provider = ProviderAnthropic
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		logger: cfg.Logger.With(logging.Provider(ProviderAnthropic), logging.Model(cfg.Model)),
	}
}

func (p *Anthropic) Provider() string { return ProviderAnthropic }
func (p *Anthropic) Name() string     { return p.cfg.Model }

// Generate sends one messages request.
func (p *Anthropic) Generate(ctx context.Context, req *Request) (Reply, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.cfg.Model),
		MaxTokens:   int64(p.cfg.MaxTokens),
		Messages:    anthropicMessages(req.Messages),
		Temperature: anthropic.Float(p.cfg.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	tools, err := anthropicTools(req.Tools)
	if err != nil {
		return nil, err
	}
	params.Tools = tools

	p.logger.Debug("sending request", "messages", len(params.Messages), "tools", len(tools))

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	var calls []ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args, err := decodeArguments(string(b.Input))
			if err != nil {
				return nil, fmt.Errorf("anthropic: invalid arguments for %s: %w", b.Name, err)
			}
			calls = append(calls, ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}

	if text.Len() == 0 && len(calls) == 0 {
		return nil, ErrEmptyResponse
	}
	return replyFrom(text.String(), calls), nil
}

// anthropicMessages converts the transcript. Consecutive tool results are
// sent together in one user message.
func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			flush()
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, c := range m.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    c.ID,
						Name:  c.Name,
						Input: c.Arguments,
					},
				})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
			}
		case RoleTool:
			if m.ToolResult != nil {
				pending = append(pending, anthropic.NewToolResultBlock(m.ToolResult.CallID, m.ToolResult.Content, m.ToolResult.IsError))
			}
		}
	}
	flush()
	return out
}

func anthropicTools(defs []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if err := json.Unmarshal(d.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", d.Name, err)
		}
		if schema.Properties == nil {
			schema.Properties = map[string]any{}
		}
		tool := anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools, nil
}
