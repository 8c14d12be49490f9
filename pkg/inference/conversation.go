package inference

import (
	"context"
	"strings"
	"sync"
)

// DefaultSystemPrompt keeps replies short enough to be spoken aloud.
const DefaultSystemPrompt = "You are Reachy, a small friendly desk robot. " +
	"Your replies are spoken through a speaker, so answer in one to three short sentences " +
	"without markdown, code blocks or lists."

// DefaultHistoryTurns is how many user/assistant exchanges are kept.
const DefaultHistoryTurns = 10

// Conversation is a chat session with a system prompt and a rolling
// history. It is safe for concurrent use; turns are serialized.
type Conversation struct {
	provider Provider
	system   string
	maxTurns int

	mu      sync.Mutex
	history []Message
}

// NewConversation creates a conversation over provider. maxTurns <= 0 uses
// DefaultHistoryTurns.
func NewConversation(provider Provider, systemPrompt string, maxTurns int) *Conversation {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryTurns
	}
	return &Conversation{
		provider: provider,
		system:   systemPrompt,
		maxTurns: maxTurns,
	}
}

// Chat sends text as the next user turn and returns the assistant reply.
// A failed turn leaves the history unchanged.
func (c *Conversation) Chat(ctx context.Context, text string) (string, error) {
	if c.provider == nil {
		return "", ErrUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]Message, 0, len(c.history)+2)
	if c.system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: c.system})
	}
	messages = append(messages, c.history...)
	messages = append(messages, Message{Role: RoleUser, Content: text})

	resp, err := c.provider.Complete(ctx, Request{Messages: messages})
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(resp.Text)
	c.history = append(c.history,
		Message{Role: RoleUser, Content: text},
		Message{Role: RoleAssistant, Content: reply},
	)
	if over := len(c.history) - 2*c.maxTurns; over > 0 {
		c.history = append(c.history[:0], c.history[over:]...)
	}
	return reply, nil
}

// History returns a copy of the retained messages, oldest first.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Reset clears the history.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}
