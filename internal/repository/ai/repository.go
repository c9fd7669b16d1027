package ai

import (
	"context"

	"nexcart/internal/domain"
)

// Repository records the AI interactions of signed-in users.
type Repository interface {
	CreateNegotiation(ctx context.Context, n domain.Negotiation) (*domain.Negotiation, error)
	GetNegotiation(ctx context.Context, userID, id string) (*domain.Negotiation, error)
	UpdateNegotiation(ctx context.Context, n domain.Negotiation) error
	ListNegotiations(ctx context.Context, userID string) ([]domain.Negotiation, error)

	CreateConversation(ctx context.Context, c domain.Conversation) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)

	CreateSearch(ctx context.Context, s domain.Search) (*domain.Search, error)
	ListSearches(ctx context.Context, userID string) ([]domain.Search, error)
}
