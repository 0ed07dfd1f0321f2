package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/skosovsky/kernelsy"
)

// ErrScriptExhausted is returned when a ScriptedCompleter has no responses left.
var ErrScriptExhausted = errors.New("scripted completer: no responses left")

// ScriptedCompleter replays canned responses in order and records every request.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses []Step
	requests  []kernelsy.ChatRequest
}

// Step is one scripted reply: either a response or an error.
type Step struct {
	Response *kernelsy.ChatResponse
	Err      error
}

// NewScriptedCompleter creates a completer that returns steps in order.
func NewScriptedCompleter(steps ...Step) *ScriptedCompleter {
	return &ScriptedCompleter{responses: steps}
}

// Text is a step answering with plain assistant text.
func Text(content string) Step {
	return Step{Response: &kernelsy.ChatResponse{
		Message:      kernelsy.Message{Role: kernelsy.RoleAssistant, Content: content},
		FinishReason: "stop",
	}}
}

// Calls is a step requesting tool calls.
func Calls(calls ...kernelsy.ToolCall) Step {
	return Step{Response: &kernelsy.ChatResponse{
		Message:      kernelsy.Message{Role: kernelsy.RoleAssistant, ToolCalls: calls},
		FinishReason: "tool_calls",
	}}
}

// Fail is a step returning err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Complete implements kernelsy.ChatCompleter.
func (s *ScriptedCompleter) Complete(_ context.Context, req kernelsy.ChatRequest) (*kernelsy.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Messages = slices.Clone(req.Messages)
	req.Tools = slices.Clone(req.Tools)
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return nil, ErrScriptExhausted
	}
	step := s.responses[0]
	s.responses = s.responses[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

// Requests returns the recorded requests.
func (s *ScriptedCompleter) Requests() []kernelsy.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Remaining returns the number of unused steps.
func (s *ScriptedCompleter) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

var _ kernelsy.ChatCompleter = (*ScriptedCompleter)(nil)
