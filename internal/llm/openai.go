package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/teemow/inboxchat/internal/logging"
)

// OpenAI talks to the OpenAI chat completions API.
type OpenAI struct {
	client openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI model client.
func NewOpenAI(cfg Config) *OpenAI {
	cfg.Provider = ProviderOpenAI
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: cfg.Logger.With(logging.Provider(ProviderOpenAI), logging.Model(cfg.Model)),
	}
}

func (p *OpenAI) Provider() string { return ProviderOpenAI }
func (p *OpenAI) Name() string     { return p.cfg.Model }

// Generate runs one chat completion.
func (p *OpenAI) Generate(ctx context.Context, req *Request) (Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.cfg.Model),
		Messages:            openaiMessages(req),
		Temperature:         openai.Float(p.cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(p.cfg.MaxTokens)),
	}

	tools, err := openaiTools(req.Tools)
	if err != nil {
		return nil, err
	}
	params.Tools = tools

	p.logger.Debug("sending request", "messages", len(params.Messages), "tools", len(tools))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	calls := make([]ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("openai: invalid arguments for %s: %w", tc.Function.Name, err)
		}
		calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	if msg.Content == "" && len(calls) == 0 {
		return nil, ErrEmptyResponse
	}
	return replyFrom(msg.Content, calls), nil
}

func openaiMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{Role: "assistant"}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			for _, c := range m.ToolCalls {
				args, err := json.Marshal(c.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   c.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: string(args),
					},
				})
			}
			if m.Content == "" && len(assistant.ToolCalls) == 0 {
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			if m.ToolResult == nil {
				continue
			}
			out = append(out, openai.ToolMessage(m.ToolResult.Content, m.ToolResult.CallID))
		}
	}
	return out
}

func openaiTools(defs []ToolDefinition) ([]openai.ChatCompletionToolParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if err := json.Unmarshal(d.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", d.Name, err)
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  shared.FunctionParameters(schema),
			},
		})
	}
	return tools, nil
}
