// Package kernelsy provides a small function-calling kernel for LLM applications:
// register native Go functions and prompt templates under named groups, invoke them
// directly, render prompts that call them, and let a chat-completion model choose
// and call them as tools.
//
// # Overview
//
// A Function is a named, described callable with a JSON Schema for its arguments.
// Functions live in a Registry keyed by (group, name) and are exposed to models under
// the qualified name "Group-name". The same schema that is shown to the model
// validates the arguments the model sends back.
//
// Pipeline: Go function + argument struct -> NewFunction (reflection + schema) ->
// Registry.Register(group, fn) -> Kernel.Invoke / Template.Render / Kernel.Chat.
//
// # Key concepts
//
//   - Group: a namespace of related functions (a "plugin").
//   - Prompt function: a template such as "Add {{Math.add number1=1 number2=$x}}" that is
//     rendered and sent to the model when invoked.
//   - Auto function calling: Kernel.Chat sends tool definitions, executes the tool calls
//     the model asks for, feeds results back and returns the final answer.
//   - Self-correction: ClientError messages are returned to the model; SystemError
//     details never are.
//
// # Example
//
//	type Args struct {
//	    Number1 float64 `json:"number1"`
//	    Number2 float64 `json:"number2"`
//	}
//	add, err := kernelsy.NewFunction("add", "Adds two numbers", func(_ context.Context, a Args) (float64, error) {
//	    return a.Number1 + a.Number2, nil
//	})
//	if err != nil { ... }
//	k := kernelsy.New(completer)
//	_ = k.Registry().Register("Math", add)
//	res, err := k.Invoke(ctx, "Math", "add", map[string]any{"number1": 50, "number2": 20})
package kernelsy
