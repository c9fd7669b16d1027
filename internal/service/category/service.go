package category

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"nexcart/internal/domain"
	"nexcart/internal/repository/category"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

type Service struct {
	repo category.Repository
}

func New(repo category.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, slug string) (*domain.Category, error) {
	return s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

// Upsert stores a category, deriving the slug from the name when it is empty.
func (s *Service) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, errors.New("category name required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return s.repo.Upsert(ctx, c)
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
