// Package llm abstracts the chat model behind a small interface so the
// onboarding pipeline and the chat view do not care which provider is
// configured. Gemini is the default; Anthropic is available as an
// alternative via config.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when a provider responds without any text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Role values for chat history messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Client is implemented by each provider backend.
type Client interface {
	// Complete sends a single user prompt under a system instruction.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteWithHistory sends prior turns plus the new user prompt.
	CompleteWithHistory(ctx context.Context, systemPrompt string, history []Message, userPrompt string) (string, error)

	// Model reports the model identifier in use.
	Model() string
}

// New constructs the client for the configured provider.
func New(provider, model, apiKey string) (Client, error) {
	switch provider {
	case "gemini", "":
		return NewGemini(GeminiConfig{APIKey: apiKey, Model: model}), nil
	case "anthropic":
		return NewAnthropic(AnthropicConfig{APIKey: apiKey, Model: model}), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
