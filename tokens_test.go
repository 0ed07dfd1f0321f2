package kernelsy_test

import (
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/kernelsy"
	"github.com/skosovsky/kernelsy/testutil"
)

func TestWordCounter(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"hello", 1},
		{"Calculate 100 - 35\nplease", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, kernelsy.WordCounter{}.Count(tt.text), tt.text)
	}
}

func TestCountMessages(t *testing.T) {
	msgs := []kernelsy.Message{
		{Role: kernelsy.RoleUser, Content: "add two numbers"},
		{Role: kernelsy.RoleAssistant, ToolCalls: []kernelsy.ToolCall{{Name: "Math-add", Arguments: `{"number1": 1, "number2": 2}`}}},
		{Role: kernelsy.RoleTool, Content: "3"},
	}
	assert.Equal(t, 3+4+1, kernelsy.CountMessages(kernelsy.WordCounter{}, msgs))
	assert.Equal(t, 0, kernelsy.CountMessages(kernelsy.WordCounter{}, nil))
}

func TestTikTokenCounter(t *testing.T) {
	tiktoken.SetBpeLoader(testutil.ByteLoader{Merges: []string{"he", " world"}})
	t.Cleanup(func() { tiktoken.SetBpeLoader(tiktoken.NewDefaultBpeLoader()) })

	c, err := kernelsy.NewTikTokenCounter("cl100k_base")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count(""))
	// "he" "l" "l" "o" " world"
	assert.Equal(t, 5, c.Count("hello world"))
	assert.Equal(t, 13, c.Count("<|endoftext|>"), "special tokens count as plain bytes")

	msgs := []kernelsy.Message{{Role: kernelsy.RoleUser, Content: "hello world"}}
	assert.Equal(t, 5, kernelsy.CountMessages(c, msgs))

	_, err = kernelsy.NewTikTokenCounter("no_such_encoding")
	require.Error(t, err)
}
