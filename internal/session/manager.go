// Package session owns the open cart contexts of the API process.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nexcart/internal/cart"
	"nexcart/internal/domain"
	"nexcart/internal/logging"
	"nexcart/internal/notify"
	"nexcart/internal/persistence"
	"nexcart/internal/storage/fastkv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DurableFactory returns the durable cart store of an origin, or nil when the
// durable store is unavailable.
type DurableFactory func(origin string) persistence.DurableStore

// Recorder receives cart and context metrics.
type Recorder interface {
	persistence.FailureRecorder
	CartMutation(op string)
	ContextOpened()
	ContextClosed()
}

type noopRecorder struct{}

func (noopRecorder) PersistenceFailure(string, string) {}
func (noopRecorder) CartMutation(string)               {}
func (noopRecorder) ContextOpened()                    {}
func (noopRecorder) ContextClosed()                    {}

type Manager struct {
	registry *fastkv.Registry
	notifier *notify.Notifier
	durable  DurableFactory
	logger   *logrus.Entry
	recorder Recorder
	idleTTL  time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	contexts map[string]*Context
}

type Option func(*Manager)

func WithDurable(f DurableFactory) Option {
	return func(m *Manager) { m.durable = f }
}

func WithLogger(l *logrus.Entry) Option {
	return func(m *Manager) { m.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) { m.idleTTL = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(registry *fastkv.Registry, notifier *notify.Notifier, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		notifier: notifier,
		idleTTL:  30 * time.Minute,
		now:      time.Now,
		contexts: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.recorder == nil {
		m.recorder = noopRecorder{}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Open creates a cart context for origin and starts the load protocol. The
// fast store snapshot is applied before Open returns; the durable one follows.
func (m *Manager) Open(ctx context.Context, origin string) (*Context, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return nil, fmt.Errorf("origin is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := m.logger.WithFields(logrus.Fields{"context_id": id, "origin": origin})
	area := m.registry.Area(origin)

	var durable persistence.DurableStore
	if m.durable != nil {
		durable = m.durable(origin)
	}

	c := &Context{
		ID:      id,
		Origin:  origin,
		manager: m,
		logger:  logger,
		subs:    make(map[int]chan Event),
	}
	c.touch()

	c.bridge = persistence.New(area.View(id), durable,
		persistence.WithLogger(logger.WithField("component", "persistence")),
		persistence.WithFailureRecorder(m.recorder),
		persistence.WithOnPersisted(func(persistence.OpKind, error) {
			m.notifier.Signal(origin, id)
		}),
	)
	c.cart = cart.New(
		cart.WithPersister(c.bridge),
		cart.WithObserver(c),
		cart.WithLogger(logger.WithField("component", "cart")),
	)
	c.stopListen = m.notifier.Listen(id, c.onNotify)
	c.unsubscribe = area.Subscribe(id, c.onStorage)

	m.mu.Lock()
	m.contexts[id] = c
	m.mu.Unlock()
	m.recorder.ContextOpened()

	c.loaded = c.load(m.ctx, false)
	logger.Debug("session: context opened")
	return c, nil
}

// Get returns the open context with id.
func (m *Manager) Get(id string) (*Context, error) {
	m.mu.RLock()
	c, ok := m.contexts[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.touch()
	return c, nil
}

// Close closes the context with id after its pending writes are flushed.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.contexts[id]
	delete(m.contexts, id)
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	m.recorder.ContextClosed()
	return c.close(ctx)
}

// Len reports the number of open contexts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

// Sweep closes contexts idle for longer than the idle TTL and reports how
// many were closed.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	m.mu.RLock()
	var idle []string
	for id, c := range m.contexts {
		if c.idleSince(now) > m.idleTTL {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			m.logger.WithError(err).WithField("context_id", id).Warn("session: close idle context")
		}
		closed++
	}
	if closed > 0 {
		m.logger.WithField("closed", closed).Info("session: swept idle contexts")
	}
	return closed
}

// Run sweeps idle contexts until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Shutdown closes every context, flushing pending durable writes.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Context, 0, len(m.contexts))
	for id, c := range m.contexts {
		all = append(all, c)
		delete(m.contexts, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, c := range all {
		m.recorder.ContextClosed()
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close context %s: %w", c.ID, err))
		}
	}
	m.cancel()
	return errors.Join(errs...)
}
