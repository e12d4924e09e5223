package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptStep is one scripted response: a reply or an error.
type ScriptStep struct {
	Reply Reply
	Err   error
}

// Scripted is a Model that returns pre-recorded replies in order. It keeps
// every request it receives for inspection.
type Scripted struct {
	mu       sync.Mutex
	steps    []ScriptStep
	requests []*Request
}

// NewScripted creates a scripted model from replies.
func NewScripted(steps ...ScriptStep) *Scripted {
	return &Scripted{steps: steps}
}

// Answer is a ScriptStep returning a final answer.
func Answer(text string) ScriptStep {
	return ScriptStep{Reply: FinalAnswer{Text: text}}
}

// Calls is a ScriptStep requesting tool calls.
func Calls(calls ...ToolCall) ScriptStep {
	return ScriptStep{Reply: ToolRequest{Calls: calls}}
}

// Fail is a ScriptStep returning err.
func Fail(err error) ScriptStep {
	return ScriptStep{Err: err}
}

func (s *Scripted) Provider() string { return "scripted" }
func (s *Scripted) Name() string     { return "scripted" }

// Generate returns the next scripted step.
func (s *Scripted) Generate(ctx context.Context, req *Request) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *req
	copied.Messages = append([]Message(nil), req.Messages...)
	s.requests = append(s.requests, &copied)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, fmt.Errorf("scripted model: no reply left")
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.Reply, step.Err
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}
