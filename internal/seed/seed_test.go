package seed

import (
	"context"
	"errors"
	"testing"

	"nexcart/internal/domain"
)

type recordingCategories struct {
	items []domain.Category
}

func (r *recordingCategories) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	r.items = append(r.items, c)
	return &c, nil
}

type recordingProducts struct {
	items []domain.Product
	err   error
}

func (r *recordingProducts) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.items = append(r.items, p)
	return &p, nil
}

func TestApplySeedsCatalog(t *testing.T) {
	cats := &recordingCategories{}
	prods := &recordingProducts{}

	if err := Apply(context.Background(), cats, prods); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(cats.items) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(cats.items))
	}
	if len(prods.items) != len(products) {
		t.Fatalf("expected %d products, got %d", len(products), len(prods.items))
	}

	names := map[string]bool{}
	for _, c := range cats.items {
		names[c.Name] = true
	}
	for _, p := range prods.items {
		if p.ID == 0 {
			t.Fatalf("product %q has no fixed id", p.Name)
		}
		if !names[p.Category] {
			t.Fatalf("product %q references unknown category %q", p.Name, p.Category)
		}
	}

	drill := prods.items[0]
	if drill.OriginalPriceCents == nil || *drill.OriginalPriceCents != 15999 || drill.Discount == nil || *drill.Discount != 19 {
		t.Fatalf("unexpected drill pricing %+v", drill)
	}
	hammer := prods.items[3]
	if hammer.OriginalPriceCents != nil || hammer.Discount != nil {
		t.Fatalf("hammer should have no markdown, got %+v", hammer)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	err := Apply(context.Background(), &recordingCategories{}, &recordingProducts{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
