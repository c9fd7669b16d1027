package importer

import (
	"context"
	"strings"
	"testing"

	"nexcart/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

type stubCategoryRepo struct {
	items []domain.Category
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func (s *stubCategoryRepo) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	s.items = append(s.items, c)
	return &c, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,name,description,price,original_price,discount,rating,stock,category,image_url
1,Professional Drill Set,Drill with bits,129.99,159.99,19,4.7,25,Tools,https://example.com/drill.jpg
,Heavy Duty Hammer,,$29.9,,,,50,tools,
,,,,,,,,,
12,USB-C Hub,Seven ports,39,,,,80,Accessories,`

	repo := &stubProductRepo{}
	catRepo := &stubCategoryRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, catRepo)

	res, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if res.Products != 3 || len(repo.items) != 3 {
		t.Fatalf("expected 3 products imported, got %+v", res)
	}
	if res.Categories != 2 || len(catRepo.items) != 2 {
		t.Fatalf("expected categories deduplicated case-insensitively, got %+v", catRepo.items)
	}

	drill := repo.items[0]
	if drill.ID != 1 || drill.PriceCents != 12999 || drill.Stock != 25 || drill.Category != "Tools" {
		t.Fatalf("unexpected drill %+v", drill)
	}
	if drill.OriginalPriceCents == nil || *drill.OriginalPriceCents != 15999 {
		t.Fatalf("expected original price, got %v", drill.OriginalPriceCents)
	}
	if drill.Discount == nil || *drill.Discount != 19 || drill.Rating == nil || *drill.Rating != 4.7 {
		t.Fatalf("unexpected drill markdown %+v", drill)
	}

	hammer := repo.items[1]
	if hammer.ID != 0 || hammer.PriceCents != 2990 || hammer.OriginalPriceCents != nil || hammer.Rating != nil {
		t.Fatalf("unexpected hammer %+v", hammer)
	}
	if repo.items[2].PriceCents != 3900 || repo.items[2].ID != 12 {
		t.Fatalf("unexpected hub %+v", repo.items[2])
	}
}

func TestCSVImporter_RunRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing column": "name,price\nHammer,1.00",
		"bad price":      "name,price,category\nHammer,12.345,Tools",
		"bad stock":      "name,price,stock,category\nHammer,1.00,-2,Tools",
		"bad rating":     "name,price,rating,category\nHammer,1.00,7,Tools",
		"no name":        "name,price,category\n,1.00,Tools",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			imp := NewCSVImporter(strings.NewReader(data), &stubProductRepo{}, nil)
			if _, err := imp.Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"129.99", 12999, true},
		{"$5", 500, true},
		{"0.5", 50, true},
		{".75", 75, true},
		{"10.", 0, false},
		{"1.234", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseCents(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseCents(%q) expected error, got %d", tc.in, got)
		}
	}
}
