package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmbeddingsUnsupported is returned by providers that can only chat.
var ErrEmbeddingsUnsupported = errors.New("embeddings not supported by provider")

// Role values used in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents the output from the model.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Chat sends a list of messages to the model and returns a response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Generate runs a single-turn completion: one system instruction followed by
// one user input.
func Generate(ctx context.Context, p Provider, system, input string) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: input})

	resp, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%s returned an empty completion", p.Name())
	}
	return resp.Content, nil
}

// splitSystem separates system messages from the conversation for APIs that
// take the system prompt out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// ModelOf reports the model p talks to, falling back to its name for
// providers that do not expose one.
func ModelOf(p Provider) string {
	if m, ok := p.(interface{ Model() string }); ok && m.Model() != "" {
		return m.Model()
	}
	return p.Name()
}
