package domain

import "time"

type Product struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	PriceCents         int64     `json:"priceCents"`
	OriginalPriceCents *int64    `json:"originalPriceCents,omitempty"`
	Discount           *int      `json:"discount,omitempty"`
	Rating             *float64  `json:"rating,omitempty"`
	Stock              int       `json:"stock"`
	Category           string    `json:"category"`
	ImageURL           string    `json:"imageUrl,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Snapshot captures the denormalized product fields stored with a cart entry.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		ImageURL:   p.ImageURL,
		Stock:      p.Stock,
		Category:   p.Category,
	}
}
