package product

import (
	"context"
	"strings"

	"nexcart/internal/domain"
	categoryrepo "nexcart/internal/repository/category"
	productrepo "nexcart/internal/repository/product"
)

const fallbackImage = "https://images.unsplash.com/photo-1550009158-9ebf69173e03?q=80&w=1301&auto=format&fit=crop"

// defaultImages fills in products stored without an image, keyed by category slug.
var defaultImages = map[string]string{
	"electronics": "https://images.unsplash.com/photo-1550009158-9ebf69173e03?q=80&w=1301&auto=format&fit=crop",
	"gadgets":     "https://images.unsplash.com/photo-1519389950473-47ba0277781c?q=80&w=2070&auto=format&fit=crop",
	"tools":       "https://images.unsplash.com/photo-1581166397057-235af2b3c6dd?q=80&w=2070&auto=format&fit=crop",
	"tool":        "https://images.unsplash.com/photo-1581166397057-235af2b3c6dd?q=80&w=2070&auto=format&fit=crop",
	"accessories": "https://images.unsplash.com/photo-1625929675093-a85aab94bffa?q=80&w=2071&auto=format&fit=crop",
}

type Service struct {
	repo       productrepo.Repository
	categories categoryrepo.Repository
}

func New(repo productrepo.Repository, categories categoryrepo.Repository) *Service {
	return &Service{repo: repo, categories: categories}
}

func (s *Service) List(ctx context.Context, f productrepo.ListFilter) ([]domain.Product, error) {
	products, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range products {
		withImage(&products[i])
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	withImage(p)
	return p, nil
}

// ListByCategory returns the products of an existing category.
func (s *Service) ListByCategory(ctx context.Context, slug string, limit int) (*domain.Category, []domain.Product, error) {
	c, err := s.categories.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, nil, err
	}
	products, err := s.List(ctx, productrepo.ListFilter{Category: c.Slug, Limit: limit})
	if err != nil {
		return nil, nil, err
	}
	return c, products, nil
}

func withImage(p *domain.Product) {
	if p.ImageURL != "" {
		return
	}
	if img, ok := defaultImages[strings.ToLower(p.Category)]; ok {
		p.ImageURL = img
		return
	}
	p.ImageURL = fallbackImage
}
