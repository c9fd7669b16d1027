package category

import (
	"context"
	"errors"
	"testing"

	"nexcart/internal/db/dbtest"
	"nexcart/internal/domain"
)

func TestPostgres_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t))

	cat, err := repo.Upsert(ctx, domain.Category{Name: "Electronics", Slug: "electronics"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if cat.ID == 0 || cat.Slug != "electronics" {
		t.Fatalf("unexpected category %+v", cat)
	}
	if _, err := repo.Upsert(ctx, domain.Category{Name: "Accessories", Slug: "accessories"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Slug != "accessories" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPostgres_UpsertUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t))

	first, err := repo.Upsert(ctx, domain.Category{Name: "Tools", Slug: "tools", Description: "hand and power tools"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := repo.Upsert(ctx, domain.Category{Name: "Tools & DIY", Slug: "tools"})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same ID after update")
	}
	if second.Name != "Tools & DIY" || second.Description != "hand and power tools" {
		t.Fatalf("unexpected updated category %+v", second)
	}

	got, err := repo.GetBySlug(ctx, "tools")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Tools & DIY" {
		t.Fatalf("unexpected category %+v", got)
	}
	if _, err := repo.GetBySlug(ctx, "gadgets"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
