package offline

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Entry is a stored response.
type Entry struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Cache is one named cache.
type Cache interface {
	Put(ctx context.Context, e Entry) error
	Match(ctx context.Context, url string) (Entry, bool, error)
}

// CacheStorage holds the named caches of the worker. Match searches every
// cache in creation order.
type CacheStorage interface {
	Open(ctx context.Context, name string) (Cache, error)
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Match(ctx context.Context, url string) (Entry, bool, error)
}

// MemoryStorage keeps caches in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	seq    int
	caches map[string]*memoryCache
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		s.seq++
		c = &memoryCache{order: s.seq, entries: make(map[string]Entry)}
		s.caches[name] = c
	}
	return c, nil
}

func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedNamesLocked(), nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, name)
	return nil
}

func (s *MemoryStorage) Match(ctx context.Context, url string) (Entry, bool, error) {
	s.mu.RLock()
	names := s.orderedNamesLocked()
	caches := make([]*memoryCache, 0, len(names))
	for _, n := range names {
		caches = append(caches, s.caches[n])
	}
	s.mu.RUnlock()

	for _, c := range caches {
		if e, ok, _ := c.Match(ctx, url); ok {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *MemoryStorage) orderedNamesLocked() []string {
	names := make([]string, 0, len(s.caches))
	for n := range s.caches {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.caches[names[i]].order < s.caches[names[j]].order
	})
	return names
}

type memoryCache struct {
	order   int
	mu      sync.RWMutex
	entries map[string]Entry
}

func (c *memoryCache) Put(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	c.entries[e.URL] = e
	return nil
}

func (c *memoryCache) Match(_ context.Context, url string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e, ok, nil
}
