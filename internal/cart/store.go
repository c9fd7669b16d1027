// Package cart holds the in-memory cart of a single cart context.
package cart

import (
	"sync"

	"nexcart/internal/domain"
	"nexcart/internal/logging"

	"github.com/sirupsen/logrus"
)

// Persister receives the cart after every mutation.
type Persister interface {
	// Save is called with the full cart whenever a mutation leaves it non-empty.
	Save(snapshot domain.CartSnapshot)
	// Purge is called by Clear.
	Purge()
}

// Observer is told about user-visible cart events.
type Observer interface {
	ItemAdded(product domain.ProductSnapshot, quantity int)
}

// Store is the authoritative cart for one context. All methods are safe for
// concurrent use and never return storage errors.
type Store struct {
	mu        sync.RWMutex
	items     []domain.CartEntry
	persister Persister
	observer  Observer
	logger    *logrus.Entry
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.logger = l }
}

func New(opts ...Option) *Store {
	s := &Store{items: []domain.CartEntry{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// AddItem increments the entry for product.ID by quantity or appends a new entry.
func (s *Store) AddItem(product domain.ProductSnapshot, quantity int) {
	if quantity < 1 {
		s.logger.WithFields(logrus.Fields{"product_id": product.ID, "quantity": quantity}).Warn("cart: ignoring add with non-positive quantity")
		return
	}
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].Product.ID == product.ID {
			s.items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		s.items = append(s.items, domain.CartEntry{Product: product, Quantity: quantity})
	}
	s.changedLocked()
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ItemAdded(product, quantity)
	}
}

// RemoveItem deletes the entry for productID. Removing an absent id is a no-op.
func (s *Store) RemoveItem(productID int64) {
	s.mu.Lock()
	next := s.items[:0:0]
	for _, e := range s.items {
		if e.Product.ID != productID {
			next = append(next, e)
		}
	}
	s.items = next
	s.changedLocked()
	s.mu.Unlock()
}

// UpdateQuantity sets the quantity of an existing entry; quantity <= 0 removes it.
func (s *Store) UpdateQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(productID)
		return
	}
	s.mu.Lock()
	next := make([]domain.CartEntry, len(s.items))
	for i, e := range s.items {
		if e.Product.ID == productID {
			e.Quantity = quantity
		}
		next[i] = e
	}
	s.items = next
	s.changedLocked()
	s.mu.Unlock()
}

// Clear empties the cart and purges both persistence stores.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.CartEntry{}
	if s.persister != nil {
		s.persister.Purge()
	}
}

// Replace installs a loaded snapshot. It does not trigger persistence.
func (s *Store) Replace(snapshot domain.CartSnapshot) {
	items := make([]domain.CartEntry, len(snapshot.Items))
	copy(items, snapshot.Items)
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// Items returns a copy of the entries in insertion order.
func (s *Store) Items() []domain.CartEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartEntry, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) ItemCount() int {
	return s.Snapshot().ItemCount()
}

func (s *Store) Subtotal() int64 {
	return s.Snapshot().SubtotalCents()
}

func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// AtStockLimit reports whether the entry's quantity has reached its snapshotted stock.
func (s *Store) AtStockLimit(productID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.items {
		if e.Product.ID == productID {
			return e.Quantity >= e.Product.Stock
		}
	}
	return false
}

func (s *Store) snapshotLocked() domain.CartSnapshot {
	return domain.NewCartSnapshot(s.items)
}

// changedLocked runs the autosave hook while the write lock is held so saves
// reach the persister in mutation order. An empty cart is never autosaved so
// that an initial empty state cannot overwrite a stored cart before it loads.
func (s *Store) changedLocked() {
	if s.persister == nil || len(s.items) == 0 {
		return
	}
	s.persister.Save(s.snapshotLocked())
}
