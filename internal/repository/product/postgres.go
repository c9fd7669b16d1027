package product

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"nexcart/internal/domain"
	"nexcart/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

const selectColumns = `
SELECT id, name, COALESCE(description, ''), price_cents, original_price_cents, discount, rating::float8,
       stock, category, COALESCE(image_url, ''), created_at, updated_at
FROM products
`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logrus.Entry
}

func NewPostgres(pool *pgxpool.Pool, logger *logrus.Entry) Repository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &postgresRepo{pool: pool, logger: logger.WithField("repo", "product")}
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := strconv.Itoa(len(args))
		where = append(where, "(name ILIKE $"+n+" OR description ILIKE $"+n+")")
	}

	q := selectColumns
	if len(where) > 0 {
		q += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	args = append(args, limit, max(f.Offset, 0))
	q += "ORDER BY id ASC\nLIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.WithError(err).Error("list products")
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.WithError(err).Error("list products rows")
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"category": f.Category, "count": len(result)}).Debug("listed products")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, selectColumns+"WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.WithError(err).WithField("id", id).Error("get product")
		return nil, err
	}
	return p, nil
}

// Upsert inserts a product or, when ID is set and exists, replaces it. An
// explicit ID moves the id sequence past it so later inserts do not collide.
func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, name, description, price_cents, original_price_cents, discount, rating, stock, category, image_url)
VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('products', 'id'))), $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    original_price_cents = EXCLUDED.original_price_cents,
    discount = EXCLUDED.discount,
    rating = EXCLUDED.rating,
    stock = EXCLUDED.stock,
    category = EXCLUDED.category,
    image_url = EXCLUDED.image_url,
    updated_at = now()
RETURNING id, created_at, updated_at
`
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := p
	err = tx.QueryRow(ctx, q,
		p.ID, p.Name, p.Description, p.PriceCents, p.OriginalPriceCents, p.Discount, p.Rating,
		p.Stock, p.Category, p.ImageURL,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		r.logger.WithError(err).WithField("name", p.Name).Error("upsert product")
		return nil, err
	}
	if p.ID != 0 {
		if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('products', 'id'), GREATEST((SELECT MAX(id) FROM products), 1))`); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"id": out.ID, "name": out.Name}).Debug("upserted product")
	return &out, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.OriginalPriceCents,
		&p.Discount,
		&p.Rating,
		&p.Stock,
		&p.Category,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
