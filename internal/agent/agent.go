package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/llm"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/tools"
	"github.com/teemow/inboxchat/internal/tools/common"
)

// DefaultMaxIterations bounds the reasoning steps per user message.
const DefaultMaxIterations = 10

var (
	// ErrModel is returned when the language model request fails.
	ErrModel = errors.New("language model request failed")

	// ErrIterationLimit is returned when the model keeps requesting tools
	// past the iteration cap.
	ErrIterationLimit = errors.New("agent iteration limit reached")
)

// ToolCaller is the part of the tool registry the loop needs.
type ToolCaller interface {
	Definitions() []tools.Definition
	Call(ctx context.Context, name string, args map[string]any) (tools.Result, error)
}

// Observer receives every turn as it is appended.
type Observer func(conversation.Turn)

// Config wires an Agent.
type Config struct {
	Model llm.Model
	Tools ToolCaller

	// SystemPrompt overrides the prompt built from the tool catalog.
	SystemPrompt string

	// MaxIterations defaults to DefaultMaxIterations.
	MaxIterations int

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Agent runs user messages against a model and a tool registry. It holds no
// per-session state and may be shared between sessions.
type Agent struct {
	model         llm.Model
	tools         ToolCaller
	systemPrompt  string
	maxIterations int
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
}

// Reply is the outcome of one user message.
type Reply struct {
	// Text is the final answer, or the error notice when the turn failed.
	Text string

	// AuthRequired is set when a mail tool reported that the user must
	// authenticate again.
	AuthRequired bool

	// Iterations is the number of reasoning steps taken.
	Iterations int

	// Turns are the turns appended for this message, user turn included.
	Turns []conversation.Turn
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("agent: model is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("agent: tool registry is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt(cfg.Tools.Definitions(), time.Now())
	}

	return &Agent{
		model:         cfg.Model,
		tools:         cfg.Tools,
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: cfg.MaxIterations,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}, nil
}

// MaxIterations returns the configured iteration cap.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// turnRecorder appends turns to a session and forwards them to the observer.
type turnRecorder struct {
	sess    *conversation.Session
	observe Observer
	turns   []conversation.Turn
}

func (r *turnRecorder) record(t conversation.Turn, err error) error {
	if err != nil {
		return err
	}
	r.turns = append(r.turns, t)
	if r.observe != nil {
		r.observe(t)
	}
	return nil
}

// Run processes one user message to completion. The caller must not run two
// messages of the same session concurrently.
func (a *Agent) Run(ctx context.Context, sess *conversation.Session, input string, observe Observer) (*Reply, error) {
	ctx, span := instrumentation.StartAgentTurnSpan(ctx, sess.ID())
	logger := logging.WithSession(a.logger, sess.ID())
	rec := &turnRecorder{sess: sess, observe: observe}
	reply := &Reply{}

	outcome, err := a.run(ctx, rec, reply, input)

	span.SetAttributes(
		attribute.Int(instrumentation.SpanAttrIteration, reply.Iterations),
		attribute.Int(instrumentation.SpanAttrTurnsAdded, len(rec.turns)),
	)
	instrumentation.EndSpan(span, err)
	a.metrics.RecordAgentTurn(ctx, outcome, reply.Iterations)

	reply.Turns = rec.turns
	if err != nil {
		logger.Warn("agent turn failed", slog.String("outcome", outcome), slog.Int("iterations", reply.Iterations), logging.Err(err))
	} else {
		logger.Info("agent turn completed", slog.Int("iterations", reply.Iterations), slog.Bool("auth_required", reply.AuthRequired))
	}
	return reply, err
}

func (a *Agent) run(ctx context.Context, rec *turnRecorder, reply *Reply, input string) (string, error) {
	if err := rec.record(rec.sess.AppendUser(input)); err != nil {
		return instrumentation.OutcomeModelError, err
	}

	defs := toolDefinitions(a.tools.Definitions())

	for reply.Iterations < a.maxIterations {
		reply.Iterations++

		req := &llm.Request{
			System:   a.systemPrompt,
			Messages: Messages(rec.sess.Turns()),
			Tools:    defs,
		}
		resp, err := a.model.Generate(llm.WithIteration(ctx, reply.Iterations), req)
		if err != nil {
			outcome := instrumentation.OutcomeModelError
			if ctx.Err() != nil {
				outcome = instrumentation.OutcomeCanceled
			}
			reply.Text = fmt.Sprintf("The language model request failed: %v", err)
			if recErr := rec.record(rec.sess.AppendAssistantError(reply.Text)); recErr != nil {
				return outcome, recErr
			}
			return outcome, fmt.Errorf("%w: %w", ErrModel, err)
		}

		switch r := resp.(type) {
		case llm.FinalAnswer:
			reply.Text = r.Text
			if err := rec.record(rec.sess.AppendAssistant(r.Text, nil)); err != nil {
				return instrumentation.OutcomeModelError, err
			}
			return instrumentation.OutcomeAnswered, nil

		case llm.ToolRequest:
			calls := normalizeCalls(r.Calls)
			requested := make([]conversation.ToolCall, len(calls))
			for i, c := range calls {
				requested[i] = conversation.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
			}
			if err := rec.record(rec.sess.AppendAssistant(r.Text, requested)); err != nil {
				return instrumentation.OutcomeModelError, err
			}

			for _, c := range calls {
				result, authFailed := a.execute(ctx, rec.sess.ID(), c)
				if authFailed {
					reply.AuthRequired = true
				}
				if err := rec.record(rec.sess.AppendToolResult(result)); err != nil {
					return instrumentation.OutcomeModelError, err
				}
			}

		default:
			return instrumentation.OutcomeModelError, fmt.Errorf("%w: unexpected reply type %T", ErrModel, resp)
		}
	}

	reply.Text = fmt.Sprintf("I stopped after %d reasoning steps without reaching an answer. Please try rephrasing the request.", a.maxIterations)
	if err := rec.record(rec.sess.AppendAssistantError(reply.Text)); err != nil {
		return instrumentation.OutcomeIterationLimit, err
	}
	return instrumentation.OutcomeIterationLimit, ErrIterationLimit
}

// execute runs one call and reports whether it failed for lack of
// authentication.
func (a *Agent) execute(ctx context.Context, sessionID string, call llm.ToolCall) (conversation.ToolCall, bool) {
	ctx = common.WithInvocation(ctx, common.Invocation{SessionID: sessionID, CallID: call.ID})

	result := conversation.ToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments}

	res, err := a.tools.Call(ctx, call.Name, call.Arguments)
	result.Result = res.Text
	result.IsError = res.IsError

	if err != nil {
		result.IsError = true
		if result.Result == "" {
			result.Result = errorText(err)
		}
		a.logger.Debug("tool call failed", logging.Tool(call.Name), logging.Session(sessionID), logging.Err(err))
	}
	return result, errors.Is(err, tools.ErrAuthRequired)
}

// errorText renders err in the JSON shape tool results use.
func errorText(err error) string {
	data, mErr := json.Marshal(map[string]any{"success": false, "error": err.Error()})
	if mErr != nil {
		return err.Error()
	}
	return string(data)
}

// normalizeCalls fills in missing ids and argument maps.
func normalizeCalls(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()[:8]
		}
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		out[i] = c
	}
	return out
}

func toolDefinitions(defs []tools.Definition) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return out
}
