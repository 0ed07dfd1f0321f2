package kernelsy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mathRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.AddPlugin(NewPlugin("Math", "", newAdd(t), newSubtract(t))))
	return reg
}

func TestParseTemplate_Variables(t *testing.T) {
	tmpl, err := ParseTemplate("Explain {{$concept}} to a {{ $audience }}. Use {{Math.add number1=$a number2=2}} and {{$concept}}.")
	require.NoError(t, err)
	assert.Equal(t, []string{"concept", "audience", "a"}, tmpl.Variables())
	assert.True(t, tmpl.HasCalls())
	assert.Contains(t, tmpl.String(), "{{$concept}}")

	plain := MustParseTemplate("no blocks here")
	assert.Empty(t, plain.Variables())
	assert.False(t, plain.HasCalls())
}

func TestParseTemplate_Errors(t *testing.T) {
	for _, text := range []string{
		"{{",
		"unterminated {{$x",
		"{{}}",
		"{{$}}",
		"{{$a b}}",
		"{{add number1=1}}",
		"{{Math.add number1}}",
		"{{Math.add number1=$}}",
		"{{Math.add text='open}}",
		"{{Math-add number1=1}}",
	} {
		_, err := ParseTemplate(text)
		require.ErrorIs(t, err, ErrTemplate, text)
	}
	assert.Panics(t, func() { MustParseTemplate("{{") })
}

func TestTemplate_Render_Variables(t *testing.T) {
	tmpl := MustParseTemplate("Explain {{$concept}} to a {{$audience}}.")
	out, err := tmpl.Render(context.Background(), nil, map[string]string{"concept": "recursion", "audience": "child"})
	require.NoError(t, err)
	assert.Equal(t, "Explain recursion to a child.", out)

	_, err = tmpl.Render(context.Background(), nil, map[string]string{"concept": "recursion"})
	require.ErrorIs(t, err, ErrTemplate)
}

func TestTemplate_Render_Calls(t *testing.T) {
	reg := mathRegistry(t)
	tmpl := MustParseTemplate("I had $100 and spent $35, so I have ${{Math.subtract number1=100 number2=35}} left. Twice: {{Math.add number1=$x number2=$x}}.")
	out, err := tmpl.Render(context.Background(), reg, map[string]string{"x": "2.5"})
	require.NoError(t, err)
	assert.Equal(t, "I had $100 and spent $35, so I have $65 left. Twice: 5.", out)
	assert.NotContains(t, out, "{{")
}

func TestTemplate_Render_QuotedString(t *testing.T) {
	reg := NewRegistry()
	greet, err := NewFunction("greet", "Greets", func(_ context.Context, in struct {
		Name string `json:"name"`
	}) (string, error) {
		return "Hello, " + in.Name, nil
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register("Writer", greet))
	out, err := MustParseTemplate(`{{Writer.greet name='Ada Lovelace'}}! {{Writer.greet name="Grace"}}`).Render(context.Background(), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada Lovelace! Hello, Grace", out)

	out, err = MustParseTemplate(`[{{Writer.greet name='a}}b'}}] [{{ Writer.greet name="{{x}}" }}]`).Render(context.Background(), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, "[Hello, a}}b] [Hello, {{x}}]", out)
}

func TestTemplate_Render_CallErrors(t *testing.T) {
	reg := mathRegistry(t)
	ctx := context.Background()

	_, err := MustParseTemplate("{{Math.sqrt number1=4}}").Render(ctx, reg, nil)
	require.ErrorIs(t, err, ErrFunctionNotFound)

	_, err = MustParseTemplate("{{Math.add number1=ten number2=1}}").Render(ctx, reg, nil)
	require.Error(t, err)
	assert.True(t, IsClientError(err))

	_, err = MustParseTemplate("{{Math.add number1=1}}").Render(ctx, reg, nil)
	require.Error(t, err)
	assert.True(t, IsClientError(err))

	_, err = MustParseTemplate("{{Math.add number1=$missing number2=1}}").Render(ctx, reg, nil)
	require.ErrorIs(t, err, ErrTemplate)

	_, err = MustParseTemplate("{{Math.add number1=1 number2=1}}").Render(ctx, nil, nil)
	require.ErrorIs(t, err, ErrTemplate)
}

func TestConvertArg(t *testing.T) {
	tests := []struct {
		jsonType string
		raw      string
		want     any
		wantErr  bool
	}{
		{"number", "2.5", 2.5, false},
		{"number", "abc", nil, true},
		{"integer", "42", int64(42), false},
		{"integer", "4.2", nil, true},
		{"boolean", "true", true, false},
		{"boolean", "maybe", nil, true},
		{"array", `[1,2]`, []any{1.0, 2.0}, false},
		{"object", `{"a":"b"}`, map[string]any{"a": "b"}, false},
		{"object", `{`, nil, true},
		{"string", "100", "100", false},
		{"", "as is", "as is", false},
	}
	for _, tt := range tests {
		got, err := convertArg(tt.jsonType, tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "%s %q", tt.jsonType, tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
