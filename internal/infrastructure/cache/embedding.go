package cache

import (
	"sync"
	"time"
)

const DefaultEmbeddingCapacity = 100

type embeddingEntry struct {
	vector  []float32
	expires time.Time
}

// EmbeddingCache is a bounded map of query vectors keyed by exact query
// text. When full, the oldest inserted key is evicted. Overlapping writes for
// the same key are last-write-wins.
type EmbeddingCache struct {
	mu       sync.RWMutex
	entries  map[string]embeddingEntry
	order    []string // insertion order, oldest first
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*EmbeddingCache)

// WithTTL expires entries after ttl; zero keeps them for the process lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *EmbeddingCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *EmbeddingCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewEmbeddingCache(capacity int, opts ...Option) *EmbeddingCache {
	if capacity <= 0 {
		capacity = DefaultEmbeddingCapacity
	}
	c := &EmbeddingCache{
		entries:  make(map[string]embeddingEntry, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && !c.now().Before(current.expires) {
			c.remove(key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.vector, true
}

func (c *EmbeddingCache) Put(key string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.order) >= c.capacity {
			evict := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, evict)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = embeddingEntry{vector: stored, expires: expires}
}

func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// remove expects c.mu to be held for writing.
func (c *EmbeddingCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
