package kernelsy

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

// WordCounter approximates tokens by whitespace-separated words.
type WordCounter struct{}

// Count returns the number of words in text.
func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TikTokenCounter counts tokens with a tiktoken encoding.
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter creates a counter for the given encoding (e.g. "cl100k_base").
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

// Count returns the number of tokens in text. Special-token text such as "<|endoftext|>" is
// counted as ordinary text.
func (c *TikTokenCounter) Count(text string) int {
	return len(c.tke.EncodeOrdinary(text))
}

// CountMessages sums tokens over message contents and tool-call arguments.
func CountMessages(c TokenCounter, msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += c.Count(m.Content)
		for _, tc := range m.ToolCalls {
			n += c.Count(tc.Arguments)
		}
	}
	return n
}
