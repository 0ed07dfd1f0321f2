package kernelsy

import (
	"slices"
	"sync"

	"github.com/rs/xid"
)

// History is an append-only conversation transcript. Each user message opens a new turn.
// Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	messages []Message
	turnID   string
}

// NewHistory returns a transcript seeded with an optional system message.
func NewHistory(systemPrompt string) *History {
	h := &History{}
	if systemPrompt != "" {
		h.AddSystem(systemPrompt)
	}
	return h
}

// Add appends messages. Messages without a turn ID inherit the current one.
func (h *History) Add(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		if m.TurnID == "" {
			m.TurnID = h.turnID
		}
		m.ToolCalls = slices.Clone(m.ToolCalls)
		h.messages = append(h.messages, m)
	}
}

// AddSystem appends a system message.
func (h *History) AddSystem(content string) {
	h.Add(Message{Role: RoleSystem, Content: content})
}

// AddUser starts a new turn and appends the user message.
func (h *History) AddUser(content string) {
	h.mu.Lock()
	h.turnID = xid.New().String()
	h.mu.Unlock()
	h.Add(Message{Role: RoleUser, Content: content})
}

// AddAssistant appends an assistant message.
func (h *History) AddAssistant(content string) {
	h.Add(Message{Role: RoleAssistant, Content: content})
}

// Messages returns a copy of the transcript.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	for i, m := range h.messages {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		out[i] = m
	}
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Last returns the most recent message, or false when empty.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	m := h.messages[len(h.messages)-1]
	m.ToolCalls = slices.Clone(m.ToolCalls)
	return m, true
}

// TurnID returns the ID of the current turn ("" before the first user message).
func (h *History) TurnID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.turnID
}
