// Package inference answers free-form requests through any OpenAI-compatible
// chat completions endpoint (OpenAI, Ollama, vLLM, Groq). The voice pipeline
// uses it as the conversational fallback when a command is not meant for the
// automation tool.
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	defer client.Close()
//
//	conv := inference.NewConversation(client, inference.DefaultSystemPrompt, 0)
//	reply, _ := conv.Chat(ctx, "what time is it on Mars?")
package inference

import (
	"context"
	"time"
)

// Provider completes a chat transcript.
type Provider interface {
	Complete(ctx context.Context, req Request) (Reply, error)
	Close() error
}

// Role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request. Zero MaxTokens and Temperature fall back
// to the provider defaults.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Reply is the first choice of a completion.
type Reply struct {
	Text         string
	FinishReason string
	Model        string
	TotalTokens  int
	Latency      time.Duration
}
