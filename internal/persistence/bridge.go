// Package persistence mirrors a cart to a synchronous fast store and an
// asynchronous durable store and reconciles the two on load.
package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"nexcart/internal/domain"
	"nexcart/internal/logging"

	"github.com/sirupsen/logrus"
)

const (
	CartKey      = "nexcart-shopping-cart"
	TimestampKey = "nexcart-shopping-cart-timestamp"
	// DurableRecordID is the single durable record holding the current cart.
	DurableRecordID = "current"

	defaultOpTimeout = 5 * time.Second
)

// FastStore is a synchronous string store shared by the contexts of one origin.
type FastStore interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string)
}

// DurableStore holds whole cart records. Get returns domain.ErrNotFound for a
// missing record.
type DurableStore interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
}

// FailureRecorder counts storage failures.
type FailureRecorder interface {
	PersistenceFailure(store, op string)
}

// Source tells a load callback where a snapshot came from.
type Source int

const (
	// SourceNone means neither store held a record.
	SourceNone Source = iota
	SourceFast
	SourceDurable
)

func (s Source) String() string {
	switch s {
	case SourceFast:
		return "fast"
	case SourceDurable:
		return "durable"
	default:
		return "none"
	}
}

type OpKind int

const (
	OpPut OpKind = iota + 1
	OpDelete
)

func (k OpKind) String() string {
	if k == OpDelete {
		return "delete"
	}
	return "put"
}

type op struct {
	kind OpKind
	data []byte
}

// Bridge persists one context's cart. Durable writes run on a single writer
// goroutine; a write that has not started yet is replaced by a newer one since
// every write carries the full cart. Save and Purge never call back into the
// caller synchronously, so they are safe to call while holding a lock.
type Bridge struct {
	fast        FastStore
	durable     DurableStore
	logger      *logrus.Entry
	failures    FailureRecorder
	onPersisted func(OpKind, error)
	opTimeout   time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	mu      sync.Mutex
	pending *op
	closed  bool
	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}
}

type Option func(*Bridge)

func WithLogger(l *logrus.Entry) Option {
	return func(b *Bridge) { b.logger = l }
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(b *Bridge) { b.failures = r }
}

// WithOnPersisted registers fn to run on the writer goroutine after each
// durable operation finishes, successfully or not. Without a durable store it
// runs once the fast write is done.
func WithOnPersisted(fn func(OpKind, error)) Option {
	return func(b *Bridge) { b.onPersisted = fn }
}

func WithOpTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.opTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New builds a bridge. A nil durable store selects fast-only mode.
func New(fast FastStore, durable DurableStore, opts ...Option) *Bridge {
	b := &Bridge{
		fast:      fast,
		durable:   durable,
		opTimeout: defaultOpTimeout,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	if b.durable == nil {
		b.logger.Warn("persistence: durable store unavailable, using fast store only")
	}
	go b.run()
	return b
}

// Load reads the fast store and applies its snapshot synchronously, then reads
// the durable store in the background and applies that snapshot over it. When
// neither store holds a record apply receives an empty snapshot with
// SourceNone. The returned channel closes once the durable read is done.
func (b *Bridge) Load(ctx context.Context, apply func(domain.CartSnapshot, Source)) <-chan struct{} {
	done := make(chan struct{})

	fromFast := false
	if snap, ok := b.readFast(); ok {
		apply(snap, SourceFast)
		fromFast = true
	}

	if b.durable == nil {
		if !fromFast {
			apply(domain.NewCartSnapshot(nil), SourceNone)
		}
		close(done)
		return done
	}

	b.loads.Add(1)
	go func() {
		defer b.loads.Done()
		defer close(done)
		if snap, ok := b.readDurable(ctx); ok {
			apply(snap, SourceDurable)
			return
		}
		if !fromFast {
			apply(domain.NewCartSnapshot(nil), SourceNone)
		}
	}()
	return done
}

// Save writes the snapshot to the fast store and queues a durable write.
// Failures are logged and never returned.
func (b *Bridge) Save(snapshot domain.CartSnapshot) {
	snapshot.SavedAt = b.now().UTC()
	data, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		b.logger.WithError(err).Error("persistence: refusing to save invalid cart")
		b.recordFailure("encode", "put")
		return
	}

	if err := b.fast.SetItem(CartKey, string(data)); err != nil {
		b.logger.WithError(err).Warn("persistence: fast store write failed")
		b.recordFailure("fast", "put")
	}

	b.enqueue(op{kind: OpPut, data: data})
}

// Mirror rewrites the fast store with a snapshot that came from the durable
// store. Nothing is queued for the durable store.
func (b *Bridge) Mirror(snapshot domain.CartSnapshot) {
	data, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		b.logger.WithError(err).Warn("persistence: not mirroring invalid cart")
		return
	}
	if raw, ok := b.fast.GetItem(CartKey); ok && raw == string(data) {
		return
	}
	if err := b.fast.SetItem(CartKey, string(data)); err != nil {
		b.logger.WithError(err).Warn("persistence: fast store mirror failed")
		b.recordFailure("fast", "put")
	}
}

// Purge removes the cart from both stores.
func (b *Bridge) Purge() {
	b.fast.RemoveItem(CartKey)
	b.enqueue(op{kind: OpDelete})
}

// Close waits for queued durable writes and running loads. If ctx expires
// first, in-flight store calls are cancelled.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.closing)
	}
	b.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		<-b.done
		b.loads.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-finished
		return ctx.Err()
	}
}

func (b *Bridge) readFast() (domain.CartSnapshot, bool) {
	raw, ok := b.fast.GetItem(CartKey)
	if !ok {
		return domain.CartSnapshot{}, false
	}
	snap, err := domain.DecodeSnapshot([]byte(raw))
	if err != nil {
		b.logger.WithError(err).Warn("persistence: ignoring unreadable fast store record")
		b.recordFailure("fast", "decode")
		return domain.CartSnapshot{}, false
	}
	return snap, true
}

func (b *Bridge) readDurable(ctx context.Context) (domain.CartSnapshot, bool) {
	ctx, cancel := b.opContext(ctx)
	defer cancel()

	raw, err := b.durable.Get(ctx, DurableRecordID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CartSnapshot{}, false
	}
	if err != nil {
		b.logger.WithError(err).Warn("persistence: durable store read failed")
		b.recordFailure("durable", "get")
		return domain.CartSnapshot{}, false
	}
	snap, err := domain.DecodeSnapshot(raw)
	if err != nil {
		b.logger.WithError(err).Warn("persistence: ignoring unreadable durable record")
		b.recordFailure("durable", "decode")
		return domain.CartSnapshot{}, false
	}
	return snap, true
}

func (b *Bridge) enqueue(o op) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.WithField("op", o.kind.String()).Warn("persistence: bridge closed, dropping durable write")
		return
	}
	b.pending = &o
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.wake:
			b.drain()
		case <-b.closing:
			b.drain()
			return
		}
	}
}

func (b *Bridge) drain() {
	for {
		b.mu.Lock()
		next := b.pending
		b.pending = nil
		b.mu.Unlock()
		if next == nil {
			return
		}
		b.write(*next)
	}
}

func (b *Bridge) write(o op) {
	if b.durable == nil {
		b.persisted(o.kind, nil)
		return
	}
	ctx, cancel := b.opContext(b.ctx)
	defer cancel()

	var err error
	switch o.kind {
	case OpPut:
		err = b.durable.Put(ctx, DurableRecordID, o.data)
	case OpDelete:
		err = b.durable.Delete(ctx, DurableRecordID)
		if errors.Is(err, domain.ErrNotFound) {
			err = nil
		}
	}
	if err != nil {
		b.logger.WithError(err).WithField("op", o.kind.String()).Warn("persistence: durable store write failed")
		b.recordFailure("durable", o.kind.String())
	}
	b.persisted(o.kind, err)
}

func (b *Bridge) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	if b.opTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, b.opTimeout)
}

func (b *Bridge) persisted(kind OpKind, err error) {
	if b.onPersisted != nil {
		b.onPersisted(kind, err)
	}
}

func (b *Bridge) recordFailure(store, op string) {
	if b.failures != nil {
		b.failures.PersistenceFailure(store, op)
	}
}
