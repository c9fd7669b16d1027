package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexcart/internal/domain"
)

// CartRecords is the durable cart store of one visitor origin.
type CartRecords struct {
	store  *Store
	origin string
}

// CartRecords scopes the store to origin.
func (s *Store) CartRecords(origin string) *CartRecords {
	return &CartRecords{store: s, origin: origin}
}

func (r *CartRecords) Get(ctx context.Context, id string) ([]byte, error) {
	if err := r.check(id); err != nil {
		return nil, err
	}
	var payload []byte
	err := r.store.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM cart_records WHERE origin = ? AND record_id = ?`,
		r.origin, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get cart record: %w", err)
	}
	return payload, nil
}

func (r *CartRecords) Put(ctx context.Context, id string, data []byte) error {
	if err := r.check(id); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("cart record payload is required")
	}
	_, err := r.store.sqlDB.ExecContext(ctx,
		`INSERT INTO cart_records (origin, record_id, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(origin, record_id) DO UPDATE SET
		    payload = excluded.payload,
		    updated_at = excluded.updated_at`,
		r.origin, id, data, timeToUnixMillis(r.store.now()),
	)
	if err != nil {
		return fmt.Errorf("put cart record: %w", err)
	}
	return nil
}

func (r *CartRecords) Delete(ctx context.Context, id string) error {
	if err := r.check(id); err != nil {
		return err
	}
	res, err := r.store.sqlDB.ExecContext(ctx,
		`DELETE FROM cart_records WHERE origin = ? AND record_id = ?`,
		r.origin, id,
	)
	if err != nil {
		return fmt.Errorf("delete cart record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CartRecords) check(id string) error {
	if r == nil || r.store == nil || r.store.sqlDB == nil {
		return fmt.Errorf("storage is not configured: %w", domain.ErrStorageUnavailable)
	}
	if strings.TrimSpace(r.origin) == "" {
		return fmt.Errorf("origin is required")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("record id is required")
	}
	return nil
}
