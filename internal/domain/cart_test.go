package domain

import (
	"errors"
	"testing"
)

func sampleSnapshot() CartSnapshot {
	return NewCartSnapshot([]CartEntry{
		{Product: ProductSnapshot{ID: 1, Name: "Drill", PriceCents: 4999, Stock: 3}, Quantity: 2},
		{Product: ProductSnapshot{ID: 2, Name: "Cable", PriceCents: 999, Stock: 10}, Quantity: 1},
	})
}

func TestCartSnapshotTotals(t *testing.T) {
	s := sampleSnapshot()
	if s.ItemCount() != 3 {
		t.Fatalf("expected 3 items, got %d", s.ItemCount())
	}
	if s.SubtotalCents() != 2*4999+999 {
		t.Fatalf("unexpected subtotal %d", s.SubtotalCents())
	}
}

func TestEncodeDecodeSnapshotPreservesOrder(t *testing.T) {
	raw, err := EncodeSnapshot(sampleSnapshot())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Product.ID != 1 || got.Items[1].Product.ID != 2 {
		t.Fatalf("unexpected items %+v", got.Items)
	}
}

func TestDecodeSnapshotRejectsMalformedRecords(t *testing.T) {
	cases := map[string]string{
		"not json":       `[{"product":`,
		"untagged array": `[{"product":{"id":1,"name":"x","priceCents":1},"quantity":1}]`,
		"wrong schema":   `{"schema":"other/v9","items":[]}`,
		"zero quantity":  `{"schema":"nexcart.cart/v1","items":[{"product":{"id":1,"name":"x","priceCents":1},"quantity":0}]}`,
		"duplicate id":   `{"schema":"nexcart.cart/v1","items":[{"product":{"id":1,"name":"x","priceCents":1},"quantity":1},{"product":{"id":1,"name":"x","priceCents":1},"quantity":2}]}`,
		"unknown field":  `{"schema":"nexcart.cart/v1","items":[],"extra":true}`,
		"negative price": `{"schema":"nexcart.cart/v1","items":[{"product":{"id":1,"name":"x","priceCents":-5},"quantity":1}]}`,
	}
	for name, raw := range cases {
		if _, err := DecodeSnapshot([]byte(raw)); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("%s: expected ErrInvalidSnapshot, got %v", name, err)
		}
	}
}

func TestDecodeSnapshotEmptyItems(t *testing.T) {
	got, err := DecodeSnapshot([]byte(`{"schema":"nexcart.cart/v1","items":null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Items == nil || len(got.Items) != 0 {
		t.Fatalf("expected empty item slice, got %+v", got.Items)
	}
}
