// Package notify tells the other cart contexts of an origin that the cart
// changed so they reload it.
package notify

import (
	"strconv"
	"sync"
	"time"

	"nexcart/internal/logging"
	"nexcart/internal/persistence"
	"nexcart/internal/storage/fastkv"

	"github.com/sirupsen/logrus"
)

// EventCartUpdated is the synthetic event delivered to the signalling context.
const EventCartUpdated = "cart-updated"

// Event is a same-context notification.
type Event struct {
	Type      string
	Origin    string
	ContextID string
	Timestamp int64
}

// Recorder counts signals by source ("local" or "remote").
type Recorder interface {
	NotifySignal(source string)
}

// Publisher forwards local signals to other processes.
type Publisher interface {
	Publish(sig Signal)
}

type Notifier struct {
	registry  *fastkv.Registry
	logger    *logrus.Entry
	recorder  Recorder
	publisher Publisher
	now       func() time.Time

	mu        sync.Mutex
	last      int64
	nextID    int
	listeners map[string]map[int]func(Event)
}

type Option func(*Notifier)

func WithLogger(l *logrus.Entry) Option {
	return func(n *Notifier) { n.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

func WithPublisher(p Publisher) Option {
	return func(n *Notifier) { n.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

func New(registry *fastkv.Registry, opts ...Option) *Notifier {
	n := &Notifier{
		registry:  registry,
		now:       time.Now,
		listeners: make(map[string]map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logging.Discard()
	}
	return n
}

// Signal announces a cart change made by contextID. The timestamp write
// reaches the other contexts of origin as a storage event; the writer's own
// listeners get EventCartUpdated directly.
func (n *Notifier) Signal(origin, contextID string) {
	ts := n.nextTimestamp()

	view := n.registry.Area(origin).View(contextID)
	if err := view.SetItem(persistence.TimestampKey, strconv.FormatInt(ts, 10)); err != nil {
		n.logger.WithError(err).WithField("origin", origin).Warn("notify: timestamp write failed")
	}

	n.dispatch(Event{Type: EventCartUpdated, Origin: origin, ContextID: contextID, Timestamp: ts})

	if n.recorder != nil {
		n.recorder.NotifySignal("local")
	}
	if n.publisher != nil {
		n.publisher.Publish(Signal{Origin: origin, Timestamp: ts})
	}
}

// Listen registers fn for same-context events of contextID. fn must not block.
func (n *Notifier) Listen(contextID string, fn func(Event)) (cancel func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	if n.listeners[contextID] == nil {
		n.listeners[contextID] = make(map[int]func(Event))
	}
	n.listeners[contextID][id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners[contextID], id)
		if len(n.listeners[contextID]) == 0 {
			delete(n.listeners, contextID)
		}
	}
}

// IsCartChange reports whether a storage event should trigger a reload.
func IsCartChange(ev fastkv.Event) bool {
	return ev.Key == persistence.CartKey || ev.Key == persistence.TimestampKey
}

func (n *Notifier) dispatch(ev Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.listeners[ev.ContextID]))
	for _, fn := range n.listeners[ev.ContextID] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// nextTimestamp is wall-clock milliseconds, bumped so that two signals never
// carry the same value.
func (n *Notifier) nextTimestamp() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ts := n.now().UnixMilli()
	if ts <= n.last {
		ts = n.last + 1
	}
	n.last = ts
	return ts
}
