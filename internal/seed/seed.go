package seed

import (
	"context"
	"fmt"

	"nexcart/internal/domain"
)

type CategoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type ProductWriter interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type productSeed struct {
	ID            int64
	Name          string
	Description   string
	PriceCents    int64
	OriginalCents int64
	Discount      int
	Rating        float64
	Stock         int
	Category      string
	ImageURL      string
}

var categories = []domain.Category{
	{
		Name:        "Tools",
		Slug:        "tools",
		Description: "Professional and DIY tools for all your projects",
		ImageURL:    "https://images.unsplash.com/photo-1581166397057-235af2b3c6dd?q=80&w=2070&auto=format&fit=crop",
	},
	{
		Name:        "Electronics",
		Slug:        "electronics",
		Description: "Phones, audio and everything with a battery",
		ImageURL:    "https://images.unsplash.com/photo-1550009158-9ebf69173e03?q=80&w=1301&auto=format&fit=crop",
	},
	{
		Name:        "Accessories",
		Slug:        "accessories",
		Description: "Cables, cases and the small things that finish a setup",
		ImageURL:    "https://images.unsplash.com/photo-1625929675093-a85aab94bffa?q=80&w=2071&auto=format&fit=crop",
	},
}

// Fixed ids keep repeated runs from duplicating rows.
var products = []productSeed{
	{ID: 1, Name: "Professional Drill Set", Description: "High-quality drill set with multiple bits for all your drilling needs", PriceCents: 12999, OriginalCents: 15999, Discount: 19, Rating: 4.7, Stock: 25, Category: "Tools", ImageURL: "https://images.unsplash.com/photo-1581166397057-235af2b3c6dd?q=80&w=2070&auto=format&fit=crop"},
	{ID: 2, Name: "Electric Screwdriver", Description: "Powerful electric screwdriver with adjustable torque settings", PriceCents: 4999, OriginalCents: 5999, Discount: 17, Rating: 4.5, Stock: 40, Category: "Tools", ImageURL: "https://images.unsplash.com/photo-1530124566582-a618bc2615dc?q=80&w=2070&auto=format&fit=crop"},
	{ID: 3, Name: "Precision Tool Kit", Description: "Complete set of precision tools for electronics and small repairs", PriceCents: 3499, OriginalCents: 4499, Discount: 22, Rating: 4.8, Stock: 15, Category: "Tools", ImageURL: "https://images.unsplash.com/photo-1504917595217-d4dc5ebe6122?q=80&w=2070&auto=format&fit=crop"},
	{ID: 4, Name: "Heavy Duty Hammer", Description: "Professional-grade hammer for construction and home projects", PriceCents: 2999, Rating: 4.6, Stock: 50, Category: "Tools", ImageURL: "https://images.unsplash.com/photo-1572981779307-38e8278a0acc?q=80&w=1932&auto=format&fit=crop"},
	{ID: 5, Name: "Adjustable Wrench Set", Description: "Set of adjustable wrenches in various sizes for all your needs", PriceCents: 4599, OriginalCents: 5599, Discount: 18, Rating: 4.4, Stock: 30, Category: "Tools", ImageURL: "https://images.unsplash.com/photo-1426927308491-6380b6a9936f?q=80&w=2071&auto=format&fit=crop"},
	{ID: 6, Name: "Laser Level", Description: "Professional laser level for precise measurements and alignments", PriceCents: 7999, OriginalCents: 9999, Discount: 20, Rating: 4.9, Stock: 10, Category: "Tools", ImageURL: "https://images.unsplash.com/photo-1526570207772-784d36084510?q=80&w=2035&auto=format&fit=crop"},
	{ID: 7, Name: "Wireless Earbuds", Description: "Noise cancelling earbuds with a pocket charging case", PriceCents: 8999, OriginalCents: 10999, Discount: 18, Rating: 4.3, Stock: 60, Category: "Electronics"},
	{ID: 8, Name: "Smart Watch", Description: "Fitness tracking, notifications and a week of battery", PriceCents: 19999, Rating: 4.6, Stock: 20, Category: "Electronics"},
	{ID: 9, Name: "USB-C Hub", Description: "Seven ports including HDMI and card reader", PriceCents: 3999, Rating: 4.2, Stock: 80, Category: "Accessories"},
	{ID: 10, Name: "Braided Charging Cable", Description: "Two meter braided USB-C cable", PriceCents: 1299, OriginalCents: 1599, Discount: 19, Rating: 4.1, Stock: 0, Category: "Accessories"},
}

// Apply upserts the demo catalog. It is idempotent.
func Apply(ctx context.Context, cats CategoryWriter, prods ProductWriter) error {
	for _, c := range categories {
		if _, err := cats.Upsert(ctx, c); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Slug, err)
		}
	}
	for _, s := range products {
		if _, err := prods.Upsert(ctx, s.product()); err != nil {
			return fmt.Errorf("upsert product %d: %w", s.ID, err)
		}
	}
	return nil
}

func (s productSeed) product() domain.Product {
	p := domain.Product{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		PriceCents:  s.PriceCents,
		Stock:       s.Stock,
		Category:    s.Category,
		ImageURL:    s.ImageURL,
	}
	if s.OriginalCents > 0 {
		original := s.OriginalCents
		p.OriginalPriceCents = &original
	}
	if s.Discount > 0 {
		discount := s.Discount
		p.Discount = &discount
	}
	if s.Rating > 0 {
		rating := s.Rating
		p.Rating = &rating
	}
	return p
}
