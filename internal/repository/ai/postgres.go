package ai

import (
	"context"
	"errors"

	"nexcart/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const historyLimit = 50

const negotiationColumns = `id::text, user_id::text, product_id, initial_price_cents, final_price_cents, status, messages, created_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) CreateNegotiation(ctx context.Context, n domain.Negotiation) (*domain.Negotiation, error) {
	const q = `
INSERT INTO negotiations (user_id, product_id, initial_price_cents, final_price_cents, status, messages)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + negotiationColumns
	out, err := scanNegotiation(r.pool.QueryRow(ctx, q,
		n.UserID, n.ProductID, n.InitialPriceCents, n.FinalPriceCents, string(n.Status), messagesOrEmpty(n.Messages),
	))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *postgresRepo) GetNegotiation(ctx context.Context, userID, id string) (*domain.Negotiation, error) {
	q := `SELECT ` + negotiationColumns + `
FROM negotiations
WHERE id = $1 AND user_id = $2
`
	out, err := scanNegotiation(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *postgresRepo) UpdateNegotiation(ctx context.Context, n domain.Negotiation) error {
	const q = `
UPDATE negotiations
SET status = $3, final_price_cents = $4, messages = $5
WHERE id = $1 AND user_id = $2
`
	cmd, err := r.pool.Exec(ctx, q, n.ID, n.UserID, string(n.Status), n.FinalPriceCents, messagesOrEmpty(n.Messages))
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) ListNegotiations(ctx context.Context, userID string) ([]domain.Negotiation, error) {
	q := `SELECT ` + negotiationColumns + `
FROM negotiations
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, userID, historyLimit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *postgresRepo) CreateConversation(ctx context.Context, c domain.Conversation) (*domain.Conversation, error) {
	const q = `
INSERT INTO ai_conversations (user_id, messages)
VALUES ($1, $2)
RETURNING id::text, created_at
`
	out := c
	if err := r.pool.QueryRow(ctx, q, c.UserID, messagesOrEmpty(c.Messages)).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func (r *postgresRepo) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const q = `
SELECT id::text, user_id::text, messages, created_at
FROM ai_conversations
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, userID, historyLimit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Messages, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *postgresRepo) CreateSearch(ctx context.Context, s domain.Search) (*domain.Search, error) {
	const q = `
INSERT INTO user_searches (user_id, query, recommendations)
VALUES ($1, $2, $3)
RETURNING id::text, created_at
`
	ids := s.Recommendations
	if ids == nil {
		ids = []int64{}
	}
	out := s
	if err := r.pool.QueryRow(ctx, q, s.UserID, s.Query, ids).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func (r *postgresRepo) ListSearches(ctx context.Context, userID string) ([]domain.Search, error) {
	const q = `
SELECT id::text, user_id::text, query, recommendations, created_at
FROM user_searches
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, userID, historyLimit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Search
	for rows.Next() {
		var s domain.Search
		if err := rows.Scan(&s.ID, &s.UserID, &s.Query, &s.Recommendations, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func scanNegotiation(row pgx.Row) (*domain.Negotiation, error) {
	var (
		n      domain.Negotiation
		status string
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.ProductID,
		&n.InitialPriceCents,
		&n.FinalPriceCents,
		&status,
		&n.Messages,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	n.Status = domain.NegotiationStatus(status)
	return &n, nil
}

func messagesOrEmpty(m []domain.AIMessage) []domain.AIMessage {
	if m == nil {
		return []domain.AIMessage{}
	}
	return m
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "22P02" || pgErr.Code == "23503") {
		return domain.ErrNotFound
	}
	return err
}
