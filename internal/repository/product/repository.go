package product

import (
	"context"

	"nexcart/internal/domain"
)

// ListFilter narrows a product listing. Zero values mean no filter.
type ListFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}
