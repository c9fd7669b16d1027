package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nexcart/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CategoryWriter derives the slug when the category has none.
type CategoryWriter interface {
	Upsert(ctx context.Context, category domain.Category) (*domain.Category, error)
}

var requiredColumns = []string{"name", "price", "category"}

// CSVImporter reads catalog CSV files with the columns
// id,name,description,price,original_price,discount,rating,stock,category,image_url
// and upserts one product per row. Only name, price and category are required.
type CSVImporter struct {
	reader       *csv.Reader
	productRepo  ProductWriter
	categoryRepo CategoryWriter
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:       csvr,
		productRepo:  products,
		categoryRepo: categories,
	}
}

// Result summarizes an import run.
type Result struct {
	Products   int
	Categories int
}

// Run upserts every row. It stops at the first invalid row; rows before it
// stay imported.
func (i *CSVImporter) Run(ctx context.Context) (Result, error) {
	var res Result

	headers, err := i.reader.Read()
	if err != nil {
		return res, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return res, fmt.Errorf("missing column %q", col)
		}
	}

	seen := map[string]bool{}
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row: %w", err)
		}
		line++
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		if i.categoryRepo != nil && !seen[strings.ToLower(p.Category)] {
			if _, err := i.categoryRepo.Upsert(ctx, domain.Category{Name: p.Category}); err != nil {
				return res, fmt.Errorf("upsert category %q: %w", p.Category, err)
			}
			seen[strings.ToLower(p.Category)] = true
			res.Categories++
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return res, fmt.Errorf("upsert product %q: %w", p.Name, err)
		}
		res.Products++
	}
	return res, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		Name:        pick(record, index, "name"),
		Description: pick(record, index, "description"),
		Category:    pick(record, index, "category"),
		ImageURL:    pick(record, index, "image_url"),
	}
	if p.Name == "" || p.Category == "" {
		return p, errors.New("name and category are required")
	}

	if raw := pick(record, index, "id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return p, fmt.Errorf("invalid id %q", raw)
		}
		p.ID = id
	}

	price, err := ParseCents(pick(record, index, "price"))
	if err != nil {
		return p, fmt.Errorf("price: %w", err)
	}
	p.PriceCents = price

	if raw := pick(record, index, "original_price"); raw != "" {
		original, err := ParseCents(raw)
		if err != nil {
			return p, fmt.Errorf("original_price: %w", err)
		}
		p.OriginalPriceCents = &original
	}
	if raw := pick(record, index, "discount"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 || d > 100 {
			return p, fmt.Errorf("invalid discount %q", raw)
		}
		p.Discount = &d
	}
	if raw := pick(record, index, "rating"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 || r > 5 {
			return p, fmt.Errorf("invalid rating %q", raw)
		}
		p.Rating = &r
	}
	if raw := pick(record, index, "stock"); raw != "" {
		s, err := strconv.Atoi(raw)
		if err != nil || s < 0 {
			return p, fmt.Errorf("invalid stock %q", raw)
		}
		p.Stock = s
	}
	return p, nil
}

// ParseCents reads a dollar amount such as "129.99", "$5" or "0.5" into cents
// without going through floating point.
func ParseCents(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return 0, errors.New("empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || dollars < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	return dollars*100 + cents, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
