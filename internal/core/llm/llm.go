// Package llm defines the completion collaborator used by LLM-backed actions.
// Completions are treated as fallible and non-idempotent; caching happens at
// the operation level, never here.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no completer is configured.
var ErrUnavailable = errors.New("llm: no completion backend configured")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options are per-call generation settings. Zero values use the backend's
// defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer returns a completion for a conversation.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error)
}

// Func adapts a plain function to Completer.
type Func func(ctx context.Context, model string, messages []Message, opts Options) (string, error)

func (f Func) Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	return f(ctx, model, messages, opts)
}

// Unavailable is the Completer used when nothing is configured.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, string, []Message, Options) (string, error) {
	return "", ErrUnavailable
}
