package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"nexcart/internal/cart"
	"nexcart/internal/domain"
	"nexcart/internal/notify"
	"nexcart/internal/persistence"
	"nexcart/internal/storage/fastkv"

	"github.com/sirupsen/logrus"
)

const (
	EventLoaded    = "cart-loaded"
	EventReloaded  = "cart-reloaded"
	EventItemAdded = "item-added"
)

// Event is pushed to the subscribers of a context.
type Event struct {
	Type      string                  `json:"type"`
	ContextID string                  `json:"contextId"`
	Product   *domain.ProductSnapshot `json:"product,omitempty"`
	Quantity  int                     `json:"quantity,omitempty"`
	Cart      *domain.CartSnapshot    `json:"cart,omitempty"`
	At        time.Time               `json:"at"`
}

// Context is one open cart context: a cart, its persistence and its subscriptions.
type Context struct {
	ID     string
	Origin string

	cart     *cart.Store
	bridge   *persistence.Bridge
	manager  *Manager
	logger   *logrus.Entry
	loaded   <-chan struct{}
	lastSeen atomic.Int64

	// applyMu orders local mutations against load results; gen is bumped by
	// both so a load that started before a mutation is never applied.
	applyMu sync.Mutex
	gen     uint64

	unsubscribe func()
	stopListen  func()

	mu     sync.Mutex
	closed bool
	nextID int
	subs   map[int]chan Event
}

// Items returns the current entries.
func (c *Context) Items() []domain.CartEntry {
	c.touch()
	return c.cart.Items()
}

func (c *Context) Snapshot() domain.CartSnapshot {
	c.touch()
	return c.cart.Snapshot()
}

func (c *Context) AtStockLimit(productID int64) bool {
	return c.cart.AtStockLimit(productID)
}

func (c *Context) AddItem(product domain.ProductSnapshot, quantity int) {
	c.mutate("add", func() { c.cart.AddItem(product, quantity) })
}

func (c *Context) RemoveItem(productID int64) {
	c.mutate("remove", func() { c.cart.RemoveItem(productID) })
}

func (c *Context) UpdateQuantity(productID int64, quantity int) {
	c.mutate("update", func() { c.cart.UpdateQuantity(productID, quantity) })
}

func (c *Context) Clear() {
	c.mutate("clear", c.cart.Clear)
}

// mutate applies a local change and supersedes any load still in flight.
func (c *Context) mutate(op string, fn func()) {
	c.touch()
	c.applyMu.Lock()
	c.gen++
	fn()
	c.applyMu.Unlock()
	c.manager.recorder.CartMutation(op)
}

// Loaded is closed once the initial durable read has been applied.
func (c *Context) Loaded() <-chan struct{} {
	return c.loaded
}

// Subscribe returns a channel of events for this context. Events are dropped
// for a subscriber whose buffer is full. The channel is closed when the
// context closes or cancel is called.
func (c *Context) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// ItemAdded surfaces the add acknowledgment to subscribers.
func (c *Context) ItemAdded(product domain.ProductSnapshot, quantity int) {
	p := product
	c.emit(Event{Type: EventItemAdded, Product: &p, Quantity: quantity})
}

func (c *Context) emit(ev Event) {
	ev.ContextID = c.ID
	if ev.At.IsZero() {
		ev.At = c.manager.now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Context) touch() {
	c.lastSeen.Store(c.manager.now().UnixNano())
}

func (c *Context) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastSeen.Load()))
}

// load runs the load protocol. Only the newest run may apply its durable
// result; an empty result replaces the cart only when reloading.
func (c *Context) load(ctx context.Context, reload bool) <-chan struct{} {
	c.applyMu.Lock()
	c.gen++
	gen := c.gen
	c.applyMu.Unlock()

	return c.bridge.Load(ctx, func(snap domain.CartSnapshot, src persistence.Source) {
		c.applyMu.Lock()
		if c.gen != gen {
			c.applyMu.Unlock()
			c.logger.WithField("source", src.String()).Debug("session: discarding superseded load")
			return
		}
		if src == persistence.SourceNone && !reload {
			c.applyMu.Unlock()
			return
		}
		c.cart.Replace(snap)
		if src == persistence.SourceDurable {
			// the durable record wins; keep the fast store in step with it
			c.bridge.Mirror(snap)
		}
		c.applyMu.Unlock()

		current := c.cart.Snapshot()
		typ := EventLoaded
		if reload {
			typ = EventReloaded
		}
		c.emit(Event{Type: typ, Cart: &current})
	})
}

func (c *Context) onStorage(ev fastkv.Event) {
	if !notify.IsCartChange(ev) {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.load(c.manager.ctx, true)
}

func (c *Context) onNotify(ev notify.Event) {
	current := c.cart.Snapshot()
	c.emit(Event{Type: ev.Type, Cart: &current})
}

func (c *Context) close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
	c.stopListen()
	err := c.bridge.Close(ctx)

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
	return err
}
