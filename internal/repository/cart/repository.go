package cart

import (
	"context"
)

// Repository stores serialized cart snapshots per visitor origin. Each record
// is replaced whole on every write.
type Repository interface {
	Get(ctx context.Context, origin, id string) ([]byte, error)
	Put(ctx context.Context, origin, id string, payload []byte) error
	Delete(ctx context.Context, origin, id string) error
}

// OriginStore narrows a Repository to one origin, matching the durable store
// shape the persistence bridge expects.
type OriginStore struct {
	repo   Repository
	origin string
}

func ForOrigin(repo Repository, origin string) *OriginStore {
	return &OriginStore{repo: repo, origin: origin}
}

func (s *OriginStore) Get(ctx context.Context, id string) ([]byte, error) {
	return s.repo.Get(ctx, s.origin, id)
}

func (s *OriginStore) Put(ctx context.Context, id string, data []byte) error {
	return s.repo.Put(ctx, s.origin, id, data)
}

func (s *OriginStore) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, s.origin, id)
}
