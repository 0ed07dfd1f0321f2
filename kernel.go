package kernelsy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// Kernel ties a function registry to a chat completer.
type Kernel struct {
	registry *Registry
	chat     ChatCompleter
	settings ExecutionSettings
	logger   *slog.Logger
	counter  TokenCounter
}

// New creates a Kernel. chat may be nil for kernels that only invoke native functions.
func New(chat ChatCompleter, opts ...KernelOption) *Kernel {
	o := kernelOptions{settings: DefaultSettings("")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.counter == nil {
		o.counter = WordCounter{}
	}
	return &Kernel{
		registry: o.registry,
		chat:     chat,
		settings: o.settings,
		logger:   o.logger,
		counter:  o.counter,
	}
}

// Registry returns the kernel's function registry.
func (k *Kernel) Registry() *Registry { return k.registry }

// Settings returns the default execution settings.
func (k *Kernel) Settings() ExecutionSettings { return k.settings }

// TokenCounter returns the counter used to size transcripts in debug logs.
func (k *Kernel) TokenCounter() TokenCounter { return k.counter }

// AddPlugin registers a group of functions.
func (k *Kernel) AddPlugin(p Plugin) error {
	return k.registry.AddPlugin(p)
}

// Invoke calls (group, name) directly. args is marshalled to JSON (nil means no arguments;
// json.RawMessage and []byte are passed through). The returned error is the function's error
// with any SystemError cause spelled out (see DetailedError), or ErrFunctionNotFound when absent.
// FunctionResult.Error keeps the function's error as is.
func (k *Kernel) Invoke(ctx context.Context, group, name string, args any) (FunctionResult, error) {
	argsJSON, err := marshalArgs(args)
	if err != nil {
		return FunctionResult{}, err
	}
	res := k.registry.Invoke(ctx, FunctionCall{ID: uuid.NewString(), Group: group, Name: name, Args: argsJSON})
	return res, DetailedError(res.Error)
}

func marshalArgs(args any) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		return b, nil
	}
}

// Chat runs one conversational turn over history with automatic function calling:
//
//  1. send the transcript (and tool definitions unless ToolChoiceNone),
//  2. if the reply requests tool calls, execute them in order against the registry and
//     append one tool message per call,
//  3. repeat until the model answers without tool calls. After MaxAutoInvokeAttempts rounds
//     a final request is sent without tools.
//
// history is read, never modified; every produced message is returned in ChatReply.Messages
// so the caller owns the transcript. Errors from the completer end the turn.
func (k *Kernel) Chat(ctx context.Context, history *History, settings ExecutionSettings) (*ChatReply, error) {
	if k.chat == nil {
		return nil, ErrNoCompleter
	}
	if history == nil {
		return nil, errors.New("history must not be nil")
	}
	if settings.ModelID == "" {
		settings.ModelID = k.settings.ModelID
	}
	maxRounds := settings.MaxAutoInvokeAttempts
	if maxRounds <= 0 {
		maxRounds = DefaultMaxAutoInvokeAttempts
	}
	turnID := history.TurnID()
	msgs := history.Messages()
	reply := &ChatReply{}

	for round := 0; ; round++ {
		req := ChatRequest{
			Model:       settings.ModelID,
			Messages:    msgs,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
		}
		if settings.ToolChoice != ToolChoiceNone && round < maxRounds {
			req.Tools = k.registry.ToolDefinitions(settings.Filters...)
			req.ToolChoice = settings.ToolChoice
			if req.ToolChoice == ToolChoiceRequired && round > 0 {
				req.ToolChoice = ToolChoiceAuto
			}
			if len(req.Tools) == 0 {
				req.ToolChoice = ""
			}
		}
		k.logger.DebugContext(ctx, "chat request",
			"model", req.Model, "round", round, "messages", len(msgs),
			"tools", len(req.Tools), "tokens", CountMessages(k.counter, msgs))

		resp, err := k.chat.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		reply.Usage.Add(resp.Usage)
		msg := resp.Message
		msg.Role = RoleAssistant
		msg.TurnID = turnID
		msg.ToolCalls = slices.Clone(msg.ToolCalls)
		for i := range msg.ToolCalls {
			if msg.ToolCalls[i].ID == "" {
				msg.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
		}
		msgs = append(msgs, msg)
		reply.Messages = append(reply.Messages, msg)

		if len(msg.ToolCalls) == 0 || !settings.AutoInvoke || len(req.Tools) == 0 {
			reply.Message = msg
			return reply, nil
		}
		for _, tc := range msg.ToolCalls {
			res, toolMsg := k.invokeToolCall(ctx, tc)
			toolMsg.TurnID = turnID
			reply.Invocations = append(reply.Invocations, res)
			msgs = append(msgs, toolMsg)
			reply.Messages = append(reply.Messages, toolMsg)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// invokeToolCall executes one model tool call. Failures become the tool message content so the
// model can correct itself; SystemError details are replaced by a generic message.
func (k *Kernel) invokeToolCall(ctx context.Context, tc ToolCall) (FunctionResult, Message) {
	toolMsg := Message{Role: RoleTool, Name: tc.Name, ToolCallID: tc.ID}
	group, name, err := ParseFunctionName(tc.Name)
	if err != nil {
		res := FunctionResult{CallID: tc.ID, Error: &ClientError{Reason: err.Error(), Err: ErrFunctionNotFound}}
		toolMsg.Content = toolErrorContent(res.Error)
		k.logger.WarnContext(ctx, "tool call rejected", "tool", tc.Name, "error", err)
		return res, toolMsg
	}
	res := k.registry.Invoke(ctx, FunctionCall{ID: tc.ID, Group: group, Name: name, Args: json.RawMessage(tc.Arguments)})
	if res.Error != nil {
		toolMsg.Content = toolErrorContent(res.Error)
		k.logger.WarnContext(ctx, "tool call failed", "tool", tc.Name, "call_id", tc.ID, "error", DetailedError(res.Error))
		return res, toolMsg
	}
	toolMsg.Content = res.String()
	k.logger.InfoContext(ctx, "tool call", "tool", tc.Name, "call_id", tc.ID, "duration", res.Duration)
	return res, toolMsg
}

func toolErrorContent(err error) string {
	msg := err.Error()
	if IsSystemError(err) && !IsClientError(err) {
		msg = (&SystemError{}).Error()
	}
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
