package cart

import (
	"context"
	"errors"
	"fmt"

	"nexcart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, origin, id string) ([]byte, error) {
	const q = `
SELECT payload
FROM cart_snapshots
WHERE origin = $1 AND record_id = $2
`
	var payload []byte
	if err := r.pool.QueryRow(ctx, q, origin, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (r *postgresRepo) Put(ctx context.Context, origin, id string, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("cart snapshot payload is required")
	}
	const q = `
INSERT INTO cart_snapshots (origin, record_id, payload, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (origin, record_id) DO UPDATE
SET payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.pool.Exec(ctx, q, origin, id, payload)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, origin, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_snapshots WHERE origin = $1 AND record_id = $2`, origin, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
