package kernelsy

import (
	"context"
	"fmt"
	"strings"
)

// Role tags the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the model to execute a function.
// Name is the qualified "Group-name"; Arguments is the raw JSON the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one transcript entry.
type Message struct {
	Role       Role
	Content    string
	Name       string     // function name on tool messages
	ToolCalls  []ToolCall // assistant requests
	ToolCallID string     // on tool messages, the call this answers
	TurnID     string
}

// ToolChoice controls whether and how the model may call functions.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone sends no tools.
	ToolChoiceNone ToolChoice = "none"
	// ToolChoiceRequired forces a function call on the first round of a turn.
	ToolChoiceRequired ToolChoice = "required"
)

// ParseToolChoice accepts "auto", "none" or "required" in any case; empty means auto.
func ParseToolChoice(s string) (ToolChoice, error) {
	switch ToolChoice(strings.ToLower(strings.TrimSpace(s))) {
	case "", ToolChoiceAuto:
		return ToolChoiceAuto, nil
	case ToolChoiceNone:
		return ToolChoiceNone, nil
	case ToolChoiceRequired:
		return ToolChoiceRequired, nil
	default:
		return "", fmt.Errorf("unknown tool choice %q", s)
	}
}

// DefaultMaxAutoInvokeAttempts bounds tool-call rounds per chat turn.
const DefaultMaxAutoInvokeAttempts = 5

// ExecutionSettings is the per-run invocation configuration.
type ExecutionSettings struct {
	ModelID     string
	Temperature *float32
	MaxTokens   int
	ToolChoice  ToolChoice
	// AutoInvoke executes requested tool calls inside Chat. When false, Chat returns
	// after the first response and the caller handles ToolCalls itself.
	AutoInvoke bool
	// MaxAutoInvokeAttempts is the number of tool rounds before tools are withdrawn.
	MaxAutoInvokeAttempts int
	// Filters restrict which registered functions are offered.
	Filters []FunctionFilter
}

// DefaultSettings returns auto tool choice with automatic invocation.
func DefaultSettings(modelID string) ExecutionSettings {
	return ExecutionSettings{
		ModelID:               modelID,
		ToolChoice:            ToolChoiceAuto,
		AutoInvoke:            true,
		MaxAutoInvokeAttempts: DefaultMaxAutoInvokeAttempts,
	}
}

// ChatRequest is what a ChatCompleter receives.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  ToolChoice
	Temperature *float32
	MaxTokens   int
}

// Usage reports token consumption of one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.PromptTokens += u2.PromptTokens
	u.CompletionTokens += u2.CompletionTokens
	u.TotalTokens += u2.TotalTokens
}

// ChatResponse is one model turn.
type ChatResponse struct {
	ID           string
	Model        string
	Message      Message
	FinishReason string
	Usage        Usage
}

// ChatCompleter is the remote chat-completion service, treated as a black box.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatReply is the outcome of Kernel.Chat.
type ChatReply struct {
	// Message is the final assistant message.
	Message Message
	// Messages holds every message produced during the turn, in order, ending with Message:
	// assistant tool-call requests, tool results, and the final answer.
	Messages []Message
	// Invocations lists the functions executed during the turn.
	Invocations []FunctionResult
	Usage       Usage
}

// Content returns the final assistant text.
func (r *ChatReply) Content() string {
	return r.Message.Content
}
