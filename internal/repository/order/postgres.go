package order

import (
	"context"
	"errors"
	"fmt"

	"nexcart/internal/domain"
	"nexcart/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const orderColumns = `id::text, user_id::text, status, shipping_address, payment_method,
       subtotal_cents, shipping_cents, tax_cents, total_cents, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logrus.Entry
}

func NewPostgres(pool *pgxpool.Pool, logger *logrus.Entry) Repository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &postgresRepo{pool: pool, logger: logger.WithField("repo", "order")}
}

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	if len(o.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const insertOrder = `
INSERT INTO orders (user_id, status, shipping_address, payment_method, subtotal_cents, shipping_cents, tax_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns
	out, err := scanOrder(tx.QueryRow(ctx, insertOrder,
		o.UserID, o.Status, o.ShippingAddress, string(o.PaymentMethod),
		o.SubtotalCents, o.ShippingCents, o.TaxCents, o.TotalCents,
	))
	if err != nil {
		return nil, mapError(err)
	}

	for _, item := range o.Items {
		var id int64
		err := tx.QueryRow(ctx, `
INSERT INTO order_items (order_id, product_id, quantity, price_cents, total_cents)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, out.ID, item.ProductID, item.Quantity, item.PriceCents, item.TotalCents).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert order item product_id=%d: %w", item.ProductID, mapError(err))
		}
		item.ID = id
		item.OrderID = out.ID
		out.Items = append(out.Items, item)

		// stock never goes negative; an oversold line is logged, not rejected
		var stock int
		err = tx.QueryRow(ctx, `
UPDATE products
SET stock = GREATEST(stock - $1, 0), updated_at = now()
WHERE id = $2
RETURNING stock
`, item.Quantity, item.ProductID).Scan(&stock)
		if err != nil {
			return nil, fmt.Errorf("decrement stock product_id=%d: %w", item.ProductID, mapError(err))
		}
		if stock == 0 {
			r.logger.WithField("product_id", item.ProductID).Warn("product sold out")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"order_id": out.ID, "items": len(out.Items), "total_cents": out.TotalCents}).Info("order created")
	return out, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (r *postgresRepo) Get(ctx context.Context, userID, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND user_id = $2
`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return nil, mapError(err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, order_id::text, product_id, quantity, price_cents, total_cents
FROM order_items
WHERE order_id = $1
ORDER BY id ASC
`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceCents, &it.TotalCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		method string
	)
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.ShippingAddress,
		&method,
		&o.SubtotalCents,
		&o.ShippingCents,
		&o.TaxCents,
		&o.TotalCents,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	return &o, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02":
			return domain.ErrNotFound
		case "23503":
			return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}
