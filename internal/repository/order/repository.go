package order

import (
	"context"

	"nexcart/internal/domain"
)

type Repository interface {
	// Create stores the order and its items and decrements product stock in
	// one transaction.
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Get(ctx context.Context, userID, id string) (*domain.Order, error)
}
