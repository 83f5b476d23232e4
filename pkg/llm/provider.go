// Package llm provides abstractions for LLM provider integration.
//
// The browsing subsystem treats the model as a collaborator behind a small
// interface: short reasoning answers, optionally with an attached page
// screenshot. Timeout enforcement is the caller's job; every orchestrator
// step wraps its call in a context.WithTimeout sized for that step.
package llm

import (
	"context"

	"github.com/entrhq/wander/pkg/types"
)

// Provider defines the interface for LLM integrations.
//
// Providers handle API communication and nothing else: prompt assembly,
// response parsing, and event emission all live with the caller. This keeps
// providers reusable outside the browsing loop and trivially fakeable in
// tests.
type Provider interface {
	// Complete sends messages to the LLM and returns the full response.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// ShortAnswer sends a single user prompt and returns the response text.
	// It is a convenience wrapper around Complete for one-shot reasoning
	// calls (intent generation, next-step decisions).
	ShortAnswer(ctx context.Context, prompt string) (string, error)

	// VisionAnswer sends messages that may carry image attachments and
	// returns the response text. Providers without multimodal support
	// should ignore the images rather than fail.
	VisionAnswer(ctx context.Context, messages []*types.Message) (string, error)

	// GetModel returns the model name being used.
	GetModel() string
}
