// Package guest issues visitor origins to shoppers without an account. A
// visitor origin scopes the fast and durable cart stores the way a browser
// origin scopes local storage.
package guest

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"nexcart/internal/domain"
	tokenrepo "nexcart/internal/repository/token"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid guest token")

type Service struct {
	repo tokenrepo.Repository
	ttl  time.Duration
	now  func() time.Time
}

type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(repo tokenrepo.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, ttl: 30 * 24 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Visitor is a freshly issued guest identity.
type Visitor struct {
	Origin    string    `json:"origin"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue creates a new visitor origin and a token that resolves to it.
func (s *Service) Issue(ctx context.Context) (*Visitor, error) {
	origin := "guest-" + uuid.NewString()
	expiresAt := s.now().Add(s.ttl).UTC()
	for i := 0; i < 5; i++ {
		token, err := randomToken()
		if err != nil {
			return nil, err
		}
		o := origin
		err = s.repo.Create(ctx, tokenrepo.Token{
			Token:       token,
			GuestOrigin: &o,
			Kind:        tokenrepo.KindGuest,
			ExpiresAt:   expiresAt,
		})
		if err == nil {
			return &Visitor{Origin: origin, Token: token, ExpiresAt: expiresAt}, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
	}
	return nil, errors.New("token collision")
}

// Resolve returns the visitor origin of a valid guest token.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	meta, err := s.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if meta.Kind != tokenrepo.KindGuest || meta.GuestOrigin == nil {
		return "", ErrInvalidToken
	}
	if s.now().After(meta.ExpiresAt) {
		_ = s.repo.Delete(ctx, token)
		return "", ErrInvalidToken
	}
	return *meta.GuestOrigin, nil
}

// Sweep deletes every expired token, guest or not.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
