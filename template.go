package kernelsy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	blockOpen  = "{{"
	blockClose = "}}"
)

// FunctionResolver is what a template needs to resolve embedded calls. *Registry implements it.
type FunctionResolver interface {
	Lookup(group, name string) (Function, error)
	Invoke(ctx context.Context, call FunctionCall) FunctionResult
}

type segmentKind int

const (
	segmentText segmentKind = iota
	segmentVar
	segmentCall
)

type templateArg struct {
	name  string
	value string
	isVar bool
}

type segment struct {
	kind  segmentKind
	text  string // literal text or variable name
	group string
	name  string
	args  []templateArg
}

// Template is a parsed prompt template.
//
// Syntax:
//
//	{{$city}}                                   variable
//	{{Math.add number1=10 number2=$x}}          function call, named arguments
//	{{Writer.greet name='Ada Lovelace'}}        quoted values may contain spaces and }}
type Template struct {
	source   string
	segments []segment
}

// ParseTemplate parses text. Malformed blocks yield an error wrapping ErrTemplate.
func ParseTemplate(text string) (*Template, error) {
	t := &Template{source: text}
	rest := text
	for {
		i := strings.Index(rest, blockOpen)
		if i < 0 {
			t.appendText(rest)
			return t, nil
		}
		t.appendText(rest[:i])
		rest = rest[i+len(blockOpen):]
		j := closeIndex(rest)
		if j < 0 {
			return nil, fmt.Errorf("%w: unterminated %q", ErrTemplate, blockOpen)
		}
		seg, err := parseBlock(strings.TrimSpace(rest[:j]))
		if err != nil {
			return nil, err
		}
		t.segments = append(t.segments, seg)
		rest = rest[j+len(blockClose):]
	}
}

// closeIndex returns the position of the first "}}" outside quotes. When quotes never balance
// it falls back to the first "}}" so the block parser reports the open quote.
func closeIndex(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(s[i:], blockClose):
			return i
		}
	}
	return strings.Index(s, blockClose)
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(text string) *Template {
	t, err := ParseTemplate(text)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) appendText(s string) {
	if s != "" {
		t.segments = append(t.segments, segment{kind: segmentText, text: s})
	}
}

// String returns the template source.
func (t *Template) String() string { return t.source }

// Variables returns the distinct variable names the template reads, in order of first use.
func (t *Template) Variables() []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for _, s := range t.segments {
		switch s.kind {
		case segmentVar:
			add(s.text)
		case segmentCall:
			for _, a := range s.args {
				if a.isVar {
					add(a.value)
				}
			}
		}
	}
	return out
}

// HasCalls reports whether the template embeds function calls.
func (t *Template) HasCalls() bool {
	for _, s := range t.segments {
		if s.kind == segmentCall {
			return true
		}
	}
	return false
}

// Render substitutes variables and executes embedded calls through resolver, in order.
// The result never contains template blocks. resolver may be nil if the template has no calls.
func (t *Template) Render(ctx context.Context, resolver FunctionResolver, vars map[string]string) (string, error) {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.kind {
		case segmentText:
			b.WriteString(s.text)
		case segmentVar:
			v, ok := vars[s.text]
			if !ok {
				return "", fmt.Errorf("%w: variable $%s is not set", ErrTemplate, s.text)
			}
			b.WriteString(v)
		case segmentCall:
			out, err := t.renderCall(ctx, resolver, s, vars)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		}
	}
	return b.String(), nil
}

func (t *Template) renderCall(ctx context.Context, resolver FunctionResolver, s segment, vars map[string]string) (string, error) {
	qn := QualifiedName(s.group, s.name)
	if resolver == nil {
		return "", fmt.Errorf("%w: no resolver for call to %s", ErrTemplate, qn)
	}
	fn, err := resolver.Lookup(s.group, s.name)
	if err != nil {
		return "", err
	}
	schema := fn.Parameters()
	args := make(map[string]any, len(s.args))
	for _, a := range s.args {
		raw := a.value
		if a.isVar {
			v, ok := vars[a.value]
			if !ok {
				return "", fmt.Errorf("%w: variable $%s is not set", ErrTemplate, a.value)
			}
			raw = v
		}
		val, err := convertArg(propertyType(schema, a.name), raw)
		if err != nil {
			return "", &ClientError{Reason: fmt.Sprintf("%s argument %s: %v", qn, a.name, err), Err: ErrValidation}
		}
		args[a.name] = val
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	res := resolver.Invoke(ctx, FunctionCall{Group: s.group, Name: s.name, Args: argsJSON})
	if res.Error != nil {
		return "", fmt.Errorf("render %s: %w", qn, res.Error)
	}
	return res.String(), nil
}

// convertArg turns a template string into the JSON type the parameter declares.
func convertArg(jsonType, raw string) (any, error) {
	switch jsonType {
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "integer":
		return strconv.ParseInt(raw, 10, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	case "object", "array":
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return raw, nil
	}
}

func parseBlock(body string) (segment, error) {
	if body == "" {
		return segment{}, fmt.Errorf("%w: empty block", ErrTemplate)
	}
	tokens, err := splitBlock(body)
	if err != nil {
		return segment{}, err
	}
	head := tokens[0]
	if strings.HasPrefix(head, "$") {
		name := head[1:]
		if len(tokens) != 1 || !identPattern.MatchString(name) {
			return segment{}, fmt.Errorf("%w: bad variable block %q", ErrTemplate, body)
		}
		return segment{kind: segmentVar, text: name}, nil
	}
	group, name, ok := strings.Cut(head, ".")
	if !ok || !identPattern.MatchString(group) || !identPattern.MatchString(name) {
		return segment{}, fmt.Errorf("%w: %q is not a Group.function reference", ErrTemplate, head)
	}
	seg := segment{kind: segmentCall, group: group, name: name}
	for _, tok := range tokens[1:] {
		argName, value, ok := strings.Cut(tok, "=")
		if !ok || !identPattern.MatchString(argName) {
			return segment{}, fmt.Errorf("%w: argument %q must be name=value", ErrTemplate, tok)
		}
		arg := templateArg{name: argName}
		switch {
		case strings.HasPrefix(value, "$"):
			arg.value, arg.isVar = value[1:], true
			if !identPattern.MatchString(arg.value) {
				return segment{}, fmt.Errorf("%w: bad variable reference %q", ErrTemplate, value)
			}
		case isQuoted(value):
			arg.value = value[1 : len(value)-1]
		default:
			arg.value = value
		}
		seg.args = append(seg.args, arg)
	}
	return seg, nil
}

// splitBlock splits on whitespace outside single or double quotes. Quotes are kept.
func splitBlock(body string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		quote  rune
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range body {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrTemplate, body)
	}
	flush()
	return tokens, nil
}

func isQuoted(v string) bool {
	if len(v) < 2 {
		return false
	}
	return (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"')
}
