// Package ai implements the storefront's assistant features on top of a chat
// completion model: chat, product recommendations and price negotiation.
package ai

import (
	"context"
	"errors"

	"nexcart/internal/domain"
)

// ErrNotConfigured is returned when no model client is available.
var ErrNotConfigured = errors.New("ai model is not configured")

// Request is one chat completion call.
type Request struct {
	System      string
	Messages    []domain.AIMessage
	Temperature float32
	MaxTokens   int
	// JSON asks the model for a single JSON object.
	JSON bool
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
