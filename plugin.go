package kernelsy

import (
	"fmt"
	"slices"
)

// Plugin is a named group of related functions.
type Plugin struct {
	Name        string
	Description string
	Functions   []Function
}

// NewPlugin builds a Plugin from functions.
func NewPlugin(name, description string, fns ...Function) Plugin {
	return Plugin{Name: name, Description: description, Functions: fns}
}

// AddPlugin registers every function of p under p.Name. Either all functions are registered
// or, on the first conflict or invalid name, none are.
func (r *Registry) AddPlugin(p Plugin) error {
	if err := validateIdent("group", p.Name); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(p.Functions))
	for _, fn := range p.Functions {
		if fn == nil {
			return fmt.Errorf("plugin %s: function must not be nil", p.Name)
		}
		if err := validateIdent("function", fn.Name()); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name, err)
		}
		if err := validateQualified(p.Name, fn.Name()); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name, err)
		}
		if _, dup := seen[fn.Name()]; dup {
			return fmt.Errorf("plugin %s: %w: %s", p.Name, ErrFunctionExists, QualifiedName(p.Name, fn.Name()))
		}
		seen[fn.Name()] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range p.Functions {
		if _, exists := r.rawFuncs[functionKey{group: p.Name, name: fn.Name()}]; exists {
			return fmt.Errorf("plugin %s: %w: %s", p.Name, ErrFunctionExists, QualifiedName(p.Name, fn.Name()))
		}
	}
	for _, fn := range p.Functions {
		r.store(functionKey{group: p.Name, name: fn.Name()}, fn)
	}
	r.groups[p.Name] = p.Description
	return nil
}

// ToolDefinition is the provider-neutral descriptor of a function offered to a model.
type ToolDefinition struct {
	Name        string // qualified "Group-name"
	Description string
	Parameters  map[string]any
}

// FunctionFilter selects which registered functions are offered to a model.
type FunctionFilter func(RegisteredFunction) bool

// OnlyGroups offers functions from the given groups only.
func OnlyGroups(groups ...string) FunctionFilter {
	return func(rf RegisteredFunction) bool {
		return slices.Contains(groups, rf.Group)
	}
}

// WithTag offers functions carrying the given tag (see WithTags).
func WithTag(tag string) FunctionFilter {
	return func(rf RegisteredFunction) bool {
		fm, ok := rf.Function.(FunctionMetadata)
		return ok && slices.Contains(fm.Tags(), tag)
	}
}

// ToolDefinitions returns the descriptor set handed to a model, sorted by qualified name.
// A function is included only if every filter accepts it.
func (r *Registry) ToolDefinitions(filters ...FunctionFilter) []ToolDefinition {
	fns := r.Functions()
	out := make([]ToolDefinition, 0, len(fns))
next:
	for _, rf := range fns {
		for _, f := range filters {
			if !f(rf) {
				continue next
			}
		}
		params := rf.Function.Parameters()
		if len(params) == 0 {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, ToolDefinition{
			Name:        rf.QualifiedName(),
			Description: rf.Function.Description(),
			Parameters:  params,
		})
	}
	return out
}
