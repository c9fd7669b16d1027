package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"nexcart/internal/offline"
)

// CacheStorage exposes the store as offline cache storage.
type CacheStorage struct {
	store *Store
}

func (s *Store) CacheStorage() *CacheStorage {
	return &CacheStorage{store: s}
}

func (c *CacheStorage) Open(ctx context.Context, name string) (offline.Cache, error) {
	if name == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	_, err := c.store.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_names (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, timeToUnixMillis(c.store.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &namedCache{store: c.store, name: name}, nil
}

func (c *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.store.sqlDB.QueryContext(ctx, `SELECT name FROM cache_names ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan cache name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caches: %w", err)
	}
	return names, nil
}

func (c *CacheStorage) Delete(ctx context.Context, name string) error {
	tx, err := c.store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete cache: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_name = ?`, name); err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_names WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete cache: %w", err)
	}
	return tx.Commit()
}

func (c *CacheStorage) Match(ctx context.Context, url string) (offline.Entry, bool, error) {
	row := c.store.sqlDB.QueryRowContext(ctx,
		`SELECT e.url, e.status, e.header_json, e.body, e.stored_at
		 FROM cache_entries e
		 JOIN cache_names n ON n.name = e.cache_name
		 WHERE e.url = ?
		 ORDER BY n.created_at, n.rowid
		 LIMIT 1`,
		url,
	)
	return scanEntry(row)
}

type namedCache struct {
	store *Store
	name  string
}

func (c *namedCache) Put(ctx context.Context, e offline.Entry) error {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	storedAt := e.StoredAt
	if storedAt.IsZero() {
		storedAt = c.store.now()
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}
	_, err = c.store.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_name, url, status, header_json, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_name, url) DO UPDATE SET
		    status = excluded.status,
		    header_json = excluded.header_json,
		    body = excluded.body,
		    stored_at = excluded.stored_at`,
		c.name, e.URL, e.Status, string(header), body, timeToUnixMillis(storedAt),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (c *namedCache) Match(ctx context.Context, url string) (offline.Entry, bool, error) {
	row := c.store.sqlDB.QueryRowContext(ctx,
		`SELECT url, status, header_json, body, stored_at
		 FROM cache_entries
		 WHERE cache_name = ? AND url = ?`,
		c.name, url,
	)
	return scanEntry(row)
}

func scanEntry(row *sql.Row) (offline.Entry, bool, error) {
	var e offline.Entry
	var header string
	var storedAt int64
	if err := row.Scan(&e.URL, &e.Status, &header, &e.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return offline.Entry{}, false, nil
		}
		return offline.Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	e.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return offline.Entry{}, false, fmt.Errorf("decode cached header: %w", err)
	}
	e.StoredAt = unixMillisToTime(storedAt)
	return e, true, nil
}
