// Package fastkv is a synchronous, size-limited string store partitioned by
// visitor origin. Writes made through one context's view are announced to the
// other contexts of the same origin as storage events.
package fastkv

import (
	"fmt"
	"sync"

	"nexcart/internal/domain"
)

// DefaultQuotaBytes matches the usual per-origin local storage budget.
const DefaultQuotaBytes = 5 << 20

// Event describes a change to one key. NewValue is nil when the key was removed.
type Event struct {
	Origin   string
	Key      string
	OldValue *string
	NewValue *string
	// Source is the context that made the change, or "" for remote changes.
	Source string
}

// Registry owns one Area per origin.
type Registry struct {
	mu    sync.Mutex
	quota int
	areas map[string]*Area
}

func NewRegistry(quotaBytes int) *Registry {
	if quotaBytes <= 0 {
		quotaBytes = DefaultQuotaBytes
	}
	return &Registry{quota: quotaBytes, areas: make(map[string]*Area)}
}

// Area returns the storage area of origin, creating it on first use.
func (r *Registry) Area(origin string) *Area {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[origin]
	if !ok {
		a = &Area{
			origin: origin,
			quota:  r.quota,
			items:  make(map[string]string),
			subs:   make(map[*subscriber]struct{}),
		}
		r.areas[origin] = a
	}
	return a
}

// Area is the storage shared by every context of one origin.
type Area struct {
	origin string
	quota  int

	mu    sync.Mutex
	items map[string]string
	used  int
	subs  map[*subscriber]struct{}
}

// View binds the area to a context so that its writes carry a source.
func (a *Area) View(contextID string) *View {
	return &View{area: a, source: contextID}
}

// Len reports the number of stored keys.
func (a *Area) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Subscribe registers fn for events caused by contexts other than contextID.
// Events are delivered in order on a dedicated goroutine; the returned func
// unsubscribes and stops delivery.
func (a *Area) Subscribe(contextID string, fn func(Event)) (cancel func()) {
	s := newSubscriber(contextID, fn)
	a.mu.Lock()
	a.subs[s] = struct{}{}
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, s)
			a.mu.Unlock()
			s.stop()
		})
	}
}

// Broadcast delivers an event that originated outside this process to every
// subscriber of the area.
func (a *Area) Broadcast(ev Event) {
	ev.Origin = a.origin
	ev.Source = ""
	a.mu.Lock()
	subs := a.snapshotSubsLocked()
	a.mu.Unlock()
	for _, s := range subs {
		s.push(ev)
	}
}

func (a *Area) get(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.items[key]
	return v, ok
}

func (a *Area) set(source, key, value string) error {
	a.mu.Lock()
	old, existed := a.items[key]
	delta := len(key) + len(value)
	if existed {
		delta -= len(key) + len(old)
	}
	if a.used+delta > a.quota {
		a.mu.Unlock()
		return fmt.Errorf("fastkv: set %q (%d bytes): %w", key, len(value), domain.ErrQuotaExceeded)
	}
	if existed && old == value {
		a.mu.Unlock()
		return nil
	}
	a.items[key] = value
	a.used += delta
	subs := a.snapshotSubsLocked()
	a.mu.Unlock()

	ev := Event{Origin: a.origin, Key: key, NewValue: &value, Source: source}
	if existed {
		ev.OldValue = &old
	}
	a.dispatch(subs, ev)
	return nil
}

func (a *Area) remove(source, key string) {
	a.mu.Lock()
	old, existed := a.items[key]
	if !existed {
		a.mu.Unlock()
		return
	}
	delete(a.items, key)
	a.used -= len(key) + len(old)
	subs := a.snapshotSubsLocked()
	a.mu.Unlock()

	a.dispatch(subs, Event{Origin: a.origin, Key: key, OldValue: &old, Source: source})
}

func (a *Area) snapshotSubsLocked() []*subscriber {
	out := make([]*subscriber, 0, len(a.subs))
	for s := range a.subs {
		out = append(out, s)
	}
	return out
}

// dispatch skips the writing context; same-context listeners are notified by
// the caller through a synthetic event instead.
func (a *Area) dispatch(subs []*subscriber, ev Event) {
	for _, s := range subs {
		if s.contextID == ev.Source {
			continue
		}
		s.push(ev)
	}
}

// View is the FastStore of one context.
type View struct {
	area   *Area
	source string
}

func (v *View) GetItem(key string) (string, bool) {
	return v.area.get(key)
}

func (v *View) SetItem(key, value string) error {
	return v.area.set(v.source, key, value)
}

func (v *View) RemoveItem(key string) {
	v.area.remove(v.source, key)
}

type subscriber struct {
	contextID string
	fn        func(Event)

	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newSubscriber(contextID string, fn func(Event)) *subscriber {
	s := &subscriber{
		contextID: contextID,
		fn:        fn,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.fn(ev)
		}
	}
}

func (s *subscriber) stop() {
	close(s.done)
	<-s.stopped
}
