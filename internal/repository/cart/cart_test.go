package cart

import (
	"context"
	"errors"
	"testing"

	"nexcart/internal/db/dbtest"
	"nexcart/internal/domain"
)

func TestPostgres_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t))

	store := ForOrigin(repo, "visitor-1")
	if _, err := store.Get(ctx, "current"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	snap := domain.NewCartSnapshot([]domain.CartEntry{
		{Product: domain.ProductSnapshot{ID: 7, Name: "Desk Lamp", PriceCents: 2599, Stock: 10}, Quantity: 2},
	})
	raw, err := domain.EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.Put(ctx, "current", raw); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "current")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	decoded, err := domain.DecodeSnapshot(got)
	if err != nil {
		t.Fatalf("decode stored payload: %v", err)
	}
	if decoded.ItemCount() != 2 {
		t.Fatalf("unexpected snapshot %+v", decoded)
	}

	if _, err := ForOrigin(repo, "visitor-2").Get(ctx, "current"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("origins must not share records, got %v", err)
	}

	if err := store.Delete(ctx, "current"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "current"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
