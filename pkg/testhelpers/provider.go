package testhelpers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/darp-registry/darp/internal/llm"
	"github.com/darp-registry/darp/pkg/types"
)

// ScriptStep is one canned provider answer. Exactly one of Response and Err is set.
type ScriptStep struct {
	Response *llm.Response
	Err      error
}

// ScriptedProvider answers Complete calls with its steps, in order.
// Once the script runs out, the last step is repeated.
type ScriptedProvider struct {
	mu       sync.Mutex
	steps    []ScriptStep
	requests []*llm.Request
}

func NewScriptedProvider(steps ...ScriptStep) *ScriptedProvider {
	return &ScriptedProvider{steps: steps}
}

func (p *ScriptedProvider) Name() string { return "scripted" }

func (p *ScriptedProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// keep a copy of the transcript as it was at call time
	cp := *req
	cp.Messages = append([]types.Message(nil), req.Messages...)
	p.requests = append(p.requests, &cp)

	if len(p.steps) == 0 {
		return nil, fmt.Errorf("scripted provider has no steps")
	}
	idx := len(p.requests) - 1
	if idx >= len(p.steps) {
		idx = len(p.steps) - 1
	}
	step := p.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Requests returns every request received so far.
func (p *ScriptedProvider) Requests() []*llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.Request(nil), p.requests...)
}

// TextStep is a final answer without tool calls.
func TextStep(content string) ScriptStep {
	return ScriptStep{Response: &llm.Response{Content: content, StopReason: "stop"}}
}

// ToolCallStep requests one tool call with the given JSON arguments.
func ToolCallStep(id, name, args string) ScriptStep {
	return ScriptStep{Response: &llm.Response{
		ToolCalls:  []types.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(args)}},
		StopReason: "tool_calls",
	}}
}

// ErrorStep fails the call with err.
func ErrorStep(err error) ScriptStep {
	return ScriptStep{Err: err}
}
