package kernelsy

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Function is the contract for a kernel-callable function.
// It is provider-agnostic (no knowledge of OpenAI, OpenRouter, etc.).
type Function interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as map (compatible with LLM tool definitions).
	Parameters() map[string]any
	// Invoke runs the function with JSON arguments and returns the JSON-encoded result.
	Invoke(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// FunctionMetadata is implemented by functions created with NewFunction and provides optional
// per-function settings. Registry uses Timeout() to override its default when set.
type FunctionMetadata interface {
	Timeout() time.Duration
	Tags() []string
	Version() string
}

// FunctionCall is a single invocation request, either built locally or produced by the model.
type FunctionCall struct {
	ID    string
	Group string
	Name  string
	Args  json.RawMessage
}

// QualifiedName returns the name the model sees for this call ("Group-name").
func (c FunctionCall) QualifiedName() string {
	return QualifiedName(c.Group, c.Name)
}

// FunctionResult is the outcome of one invocation.
type FunctionResult struct {
	CallID   string
	Group    string
	Name     string
	Value    json.RawMessage
	Error    error
	Duration time.Duration
}

// Decode unmarshals the result value into v.
func (r FunctionResult) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	return json.Unmarshal(r.Value, v)
}

// Float decodes a numeric result.
func (r FunctionResult) Float() (float64, error) {
	var f float64
	if err := r.Decode(&f); err != nil {
		return 0, err
	}
	return f, nil
}

// String renders the value as plain text: JSON strings are unquoted, numbers use the shortest
// representation, anything else is returned as raw JSON.
func (r FunctionResult) String() string {
	return renderValue(r.Value)
}

func renderValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return string(raw)
	}
}
