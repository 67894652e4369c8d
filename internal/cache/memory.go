package cache

import (
	"sort"
	"sync"
	"time"
)

// MemoryConfig configures a MemoryCache. Zero values select the defaults.
type MemoryConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
	MaxAge  time.Duration `yaml:"max_age"`
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time `yaml:"-"`
}

type memoryEntry[T any] struct {
	data      T
	writtenAt time.Time
	ttl       time.Duration
	seq       uint64
	hits      int64
}

// MemoryCache is a bounded in-process key/value store with per-entry TTL and a
// max-age ceiling. When full it drops expired entries first, then the oldest
// writes. Hit counts are tracked for Stats only and never affect eviction.
type MemoryCache[T any] struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry[T]
	seq     uint64

	ttl     time.Duration
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a memory cache.
func NewMemoryCache[T any](cfg MemoryConfig) *MemoryCache[T] {
	c := &MemoryCache[T]{
		entries: make(map[string]*memoryEntry[T]),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
		maxAge:  cfg.MaxAge,
		now:     clockOrNow(cfg.Clock),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultMemoryTTL
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMemoryMaxSize
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultMemoryMaxAge
	}
	return c
}

// Set stores value under key, replacing any previous entry.
// A ttl <= 0 uses the cache default.
func (c *MemoryCache[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.cleanupLocked()
	}

	c.seq++
	c.entries[key] = &memoryEntry[T]{
		data:      value,
		writtenAt: c.now(),
		ttl:       ttl,
		seq:       c.seq,
	}
}

// Get returns the value for key. Expired or over-age entries are removed and
// reported as absent.
func (c *MemoryCache[T]) Get(key string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if expired(c.now(), e.writtenAt, e.ttl, c.maxAge) {
		delete(c.entries, key)
		return zero, false
	}

	e.hits++
	return e.data, true
}

// Has reports whether Get would return a value.
func (c *MemoryCache[T]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (c *MemoryCache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *MemoryCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry[T])
}

// Keys returns all stored keys in write order, including entries that have
// expired but were not yet swept.
func (c *MemoryCache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := c.byWriteOrderLocked()
	keys := make([]string, len(ordered))
	for i, kv := range ordered {
		keys[i] = kv.key
	}
	return keys
}

// Len returns the number of stored entries, live or not.
func (c *MemoryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes expired and over-age entries. If the cache is still full it
// evicts the oldest writes until there is room for one more entry.
func (c *MemoryCache[T]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
}

func (c *MemoryCache[T]) cleanupLocked() {
	now := c.now()
	for key, e := range c.entries {
		if expired(now, e.writtenAt, e.ttl, c.maxAge) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) < c.maxSize {
		return
	}

	ordered := c.byWriteOrderLocked()
	excess := len(c.entries) - c.maxSize + 1
	for _, kv := range ordered[:excess] {
		delete(c.entries, kv.key)
	}
}

type keyedEntry[T any] struct {
	key   string
	entry *memoryEntry[T]
}

func (c *MemoryCache[T]) byWriteOrderLocked() []keyedEntry[T] {
	ordered := make([]keyedEntry[T], 0, len(c.entries))
	for key, e := range c.entries {
		ordered = append(ordered, keyedEntry[T]{key: key, entry: e})
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].entry, ordered[j].entry
		if !a.writtenAt.Equal(b.writtenAt) {
			return a.writtenAt.Before(b.writtenAt)
		}
		return a.seq < b.seq
	})
	return ordered
}

// Stats returns a snapshot of size and hit counters.
func (c *MemoryCache[T]) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := MemoryStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
	}
	for _, e := range c.entries {
		stats.TotalHits += e.hits
		if stats.Oldest.IsZero() || e.writtenAt.Before(stats.Oldest) {
			stats.Oldest = e.writtenAt
		}
		if e.writtenAt.After(stats.Newest) {
			stats.Newest = e.writtenAt
		}
	}
	if stats.Size > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(stats.Size)
	}
	return stats
}

// StartCleanup sweeps the cache every interval until the returned stop
// function is called. A non-positive interval uses DefaultMemoryCleanupInterval.
func (c *MemoryCache[T]) StartCleanup(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultMemoryCleanupInterval
	}
	return startLoop(interval, c.Cleanup)
}
