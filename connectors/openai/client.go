// Package openai is a kernelsy.ChatCompleter for OpenAI-compatible chat completion APIs
// (OpenRouter by default), built on github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/skosovsky/kernelsy"
)

// DefaultBaseURL is the OpenRouter endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

var (
	// ErrMissingAPIKey is returned by New when Config.APIKey is empty.
	ErrMissingAPIKey = errors.New("openai: api key is required")
	// ErrNoChoices is returned when the service answers without any choice.
	ErrNoChoices = errors.New("openai: response has no choices")
)

// Config configures the connector.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // per request; zero means no client timeout
	// Referer and AppTitle are sent as OpenRouter attribution headers when set.
	Referer  string
	AppTitle string
	// Transport overrides the HTTP transport (tests, proxies).
	Transport http.RoundTripper
}

// Client implements kernelsy.ChatCompleter.
type Client struct {
	api *gopenai.Client
}

// New builds a client. It does not contact the service.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	oc := gopenai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	headers := make(http.Header)
	if cfg.Referer != "" {
		headers.Set("HTTP-Referer", cfg.Referer)
	}
	if cfg.AppTitle != "" {
		headers.Set("X-Title", cfg.AppTitle)
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &headerTransport{base: base, headers: headers},
	}
	return &Client{api: gopenai.NewClientWithConfig(oc)}, nil
}

// Complete sends one chat completion request and maps the first choice back.
func (c *Client) Complete(ctx context.Context, req kernelsy.ChatRequest) (*kernelsy.ChatResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, toRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	choice := resp.Choices[0]
	return &kernelsy.ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Message:      fromMessage(choice.Message),
		FinishReason: string(choice.FinishReason),
		Usage: kernelsy.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func toRequest(req kernelsy.ChatRequest) gopenai.ChatCompletionRequest {
	out := gopenai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  make([]gopenai.ChatCompletionMessage, 0, len(req.Messages)),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toMessage(m))
	}
	for _, td := range req.Tools {
		out.Tools = append(out.Tools, gopenai.Tool{
			Type: gopenai.ToolTypeFunction,
			Function: &gopenai.FunctionDefinition{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}
	if len(out.Tools) > 0 && req.ToolChoice != "" {
		out.ToolChoice = string(req.ToolChoice)
	}
	return out
}

func toMessage(m kernelsy.Message) gopenai.ChatCompletionMessage {
	out := gopenai.ChatCompletionMessage{
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	switch m.Role {
	case kernelsy.RoleSystem:
		out.Role = gopenai.ChatMessageRoleSystem
	case kernelsy.RoleAssistant:
		out.Role = gopenai.ChatMessageRoleAssistant
	case kernelsy.RoleTool:
		out.Role = gopenai.ChatMessageRoleTool
		out.Name = m.Name
	default:
		out.Role = gopenai.ChatMessageRoleUser
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, gopenai.ToolCall{
			ID:   tc.ID,
			Type: gopenai.ToolTypeFunction,
			Function: gopenai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func fromMessage(m gopenai.ChatCompletionMessage) kernelsy.Message {
	out := kernelsy.Message{Role: kernelsy.RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, kernelsy.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header[k] = v
	}
	return t.base.RoundTrip(req)
}

var _ kernelsy.ChatCompleter = (*Client)(nil)
