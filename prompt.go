package kernelsy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// defaultPromptTimeout bounds a prompt function call, which includes a remote round trip.
const defaultPromptTimeout = 2 * time.Minute

// PromptOption configures a prompt function.
type PromptOption func(*promptOptions)

type promptOptions struct {
	description string
	settings    *ExecutionSettings
	system      string
	fnOpts      []FunctionOption
}

// WithPromptDescription sets the description shown to models.
func WithPromptDescription(d string) PromptOption {
	return func(o *promptOptions) {
		o.description = d
	}
}

// WithPromptSettings overrides the kernel's default settings for this prompt (model, temperature...).
func WithPromptSettings(s ExecutionSettings) PromptOption {
	return func(o *promptOptions) {
		o.settings = &s
	}
}

// WithSystemPrompt prepends a system message to the rendered prompt.
func WithSystemPrompt(s string) PromptOption {
	return func(o *promptOptions) {
		o.system = s
	}
}

// WithPromptFunctionOptions passes FunctionOptions (timeout, tags) to the underlying function.
func WithPromptFunctionOptions(opts ...FunctionOption) PromptOption {
	return func(o *promptOptions) {
		o.fnOpts = append(o.fnOpts, opts...)
	}
}

// promptSchema declares one required string parameter per template variable.
func promptSchema(tmpl *Template) map[string]any {
	props := make(map[string]any)
	required := make([]any, 0)
	for _, v := range tmpl.Variables() {
		props[v] = map[string]any{"type": "string"}
		required = append(required, v)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// CreateFunctionFromPrompt turns a prompt template into a Function. Invoking it renders the
// template with the call's arguments as variables (resolving embedded calls through the
// kernel's registry), sends the text to the chat completer and returns the completion as a
// JSON string. Remote errors come back as SystemError wrapping the completer's error;
// Kernel.Invoke includes that error in its message.
func (k *Kernel) CreateFunctionFromPrompt(name, template string, opts ...PromptOption) (Function, error) {
	tmpl, err := ParseTemplate(template)
	if err != nil {
		return nil, err
	}
	var o promptOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.description == "" {
		o.description = "Prompt function " + name
	}
	settings := k.settings
	if o.settings != nil {
		settings = *o.settings
	}
	handler := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		vars, err := variablesFromArgs(argsJSON)
		if err != nil {
			return nil, err
		}
		text, err := k.complete(ctx, tmpl, o.system, vars, settings)
		if err != nil {
			return nil, err
		}
		return json.Marshal(text)
	}
	fnOpts := append([]FunctionOption{WithTimeout(defaultPromptTimeout)}, o.fnOpts...)
	return NewDynamicFunction(name, o.description, promptSchema(tmpl), handler, fnOpts...)
}

// AddPromptFunction creates a prompt function and registers it under group.
func (k *Kernel) AddPromptFunction(group, name, template string, opts ...PromptOption) (Function, error) {
	fn, err := k.CreateFunctionFromPrompt(name, template, opts...)
	if err != nil {
		return nil, err
	}
	if err := k.registry.Register(group, fn); err != nil {
		return nil, err
	}
	return fn, nil
}

// InvokePrompt renders template and returns the model's completion without registering anything.
func (k *Kernel) InvokePrompt(ctx context.Context, template string, vars map[string]string) (string, error) {
	tmpl, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	return k.complete(ctx, tmpl, "", vars, k.settings)
}

// RenderPrompt renders template against the kernel's registry without calling the model.
func (k *Kernel) RenderPrompt(ctx context.Context, template string, vars map[string]string) (string, error) {
	tmpl, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	return tmpl.Render(ctx, k.registry, vars)
}

func (k *Kernel) complete(ctx context.Context, tmpl *Template, system string, vars map[string]string, settings ExecutionSettings) (string, error) {
	if k.chat == nil {
		return "", ErrNoCompleter
	}
	text, err := tmpl.Render(ctx, k.registry, vars)
	if err != nil {
		return "", err
	}
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: text})
	k.logger.DebugContext(ctx, "prompt rendered", "model", settings.ModelID, "tokens", CountMessages(k.counter, msgs))
	resp, err := k.chat.Complete(ctx, ChatRequest{
		Model:       settings.ModelID,
		Messages:    msgs,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return resp.Message.Content, nil
}

// variablesFromArgs flattens a JSON object into template variables.
func variablesFromArgs(argsJSON []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(normalizeArgs(argsJSON), &raw); err != nil {
		return nil, wrapJSONParseError(err)
	}
	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case float64:
			vars[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			vars[k] = strconv.FormatBool(val)
		case nil:
			vars[k] = ""
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, &SystemError{Err: err}
			}
			vars[k] = string(b)
		}
	}
	return vars, nil
}
