package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CartSchema tags every persisted cart record.
const CartSchema = "nexcart.cart/v1"

// ProductSnapshot is the product state captured when an item is added to a cart.
type ProductSnapshot struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Stock      int    `json:"stock"`
	Category   string `json:"category,omitempty"`
}

type CartEntry struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotalCents is price times quantity for the entry.
func (e CartEntry) LineTotalCents() int64 {
	return e.Product.PriceCents * int64(e.Quantity)
}

// CartSnapshot is the full cart as written to and read from the stores.
type CartSnapshot struct {
	Schema  string      `json:"schema"`
	Items   []CartEntry `json:"items"`
	SavedAt time.Time   `json:"savedAt,omitempty"`
}

// NewCartSnapshot copies items into a tagged snapshot.
func NewCartSnapshot(items []CartEntry) CartSnapshot {
	out := make([]CartEntry, len(items))
	copy(out, items)
	return CartSnapshot{Schema: CartSchema, Items: out}
}

func (s CartSnapshot) ItemCount() int {
	total := 0
	for _, e := range s.Items {
		total += e.Quantity
	}
	return total
}

func (s CartSnapshot) SubtotalCents() int64 {
	var total int64
	for _, e := range s.Items {
		total += e.LineTotalCents()
	}
	return total
}

// Validate checks the invariants of a persisted snapshot.
func (s CartSnapshot) Validate() error {
	if s.Schema != CartSchema {
		return fmt.Errorf("%w: unknown schema %q", ErrInvalidSnapshot, s.Schema)
	}
	seen := make(map[int64]struct{}, len(s.Items))
	for i, e := range s.Items {
		if e.Product.ID <= 0 {
			return fmt.Errorf("%w: item %d has no product id", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(e.Product.Name) == "" {
			return fmt.Errorf("%w: product %d has no name", ErrInvalidSnapshot, e.Product.ID)
		}
		if e.Product.PriceCents < 0 {
			return fmt.Errorf("%w: product %d has negative price", ErrInvalidSnapshot, e.Product.ID)
		}
		if e.Quantity < 1 {
			return fmt.Errorf("%w: product %d has quantity %d", ErrInvalidSnapshot, e.Product.ID, e.Quantity)
		}
		if _, dup := seen[e.Product.ID]; dup {
			return fmt.Errorf("%w: duplicate product %d", ErrInvalidSnapshot, e.Product.ID)
		}
		seen[e.Product.ID] = struct{}{}
	}
	return nil
}

// EncodeSnapshot validates and serializes a snapshot.
func EncodeSnapshot(s CartSnapshot) ([]byte, error) {
	if s.Schema == "" {
		s.Schema = CartSchema
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// DecodeSnapshot parses and validates a stored snapshot. Unknown fields are rejected.
func DecodeSnapshot(raw []byte) (CartSnapshot, error) {
	var s CartSnapshot
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return CartSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return CartSnapshot{}, err
	}
	if s.Items == nil {
		s.Items = []CartEntry{}
	}
	return s, nil
}
