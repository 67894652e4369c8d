package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"sitefront/internal/cache"
	"sitefront/internal/observability"
)

// Stats combines both cache layers' statistics.
type Stats struct {
	Memory     cache.MemoryStats     `json:"memory"`
	Persistent cache.PersistentStats `json:"persistent"`
}

// Manager resolves keys through the memory cache, the persistent cache and a
// fetch function. Bindings are fixed at construction and never change.
type Manager[T any] struct {
	memory     *cache.MemoryCache[T]
	persistent *cache.PersistentCache[T]
	bindings   []Binding

	refreshes singleflight.Group
	inflight  sync.WaitGroup
}

// New creates a Manager over the given caches. Bindings are matched in order;
// the first whose KeyPattern is contained in the key wins.
func New[T any](memory *cache.MemoryCache[T], persistent *cache.PersistentCache[T], bindings ...Binding) *Manager[T] {
	return &Manager[T]{
		memory:     memory,
		persistent: persistent,
		bindings:   append([]Binding(nil), bindings...),
	}
}

// Bindings returns a copy of the registered bindings.
func (m *Manager[T]) Bindings() []Binding {
	return append([]Binding(nil), m.bindings...)
}

// Resolve returns the binding that applies to key.
func (m *Manager[T]) Resolve(key string) Binding {
	for _, b := range m.bindings {
		if b.Matches(key) {
			return b
		}
	}
	return DefaultBinding()
}

// Get resolves key with the strategy bound to it.
func (m *Manager[T]) Get(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	return m.GetWithOptions(ctx, key, fetch, Options{})
}

// GetWithOptions resolves key, letting opts override the matched binding.
// The only errors returned are a fetch error with no cached fallback and
// ErrNoCachedData for an empty cache-only read.
func (m *Manager[T]) GetWithOptions(ctx context.Context, key string, fetch Fetcher[T], opts Options) (T, error) {
	b := opts.apply(m.Resolve(key))

	switch b.Strategy {
	case CacheFirst:
		return m.cacheFirst(ctx, key, fetch, b)
	case NetworkFirst:
		return m.networkFirst(ctx, key, fetch, b)
	case NetworkOnly:
		return m.networkOnly(ctx, key, fetch, b)
	case CacheOnly:
		return m.cacheOnly(ctx, key, b)
	default:
		return m.staleWhileRevalidate(ctx, key, fetch, b)
	}
}

func (m *Manager[T]) cacheFirst(ctx context.Context, key string, fetch Fetcher[T], b Binding) (T, error) {
	if v, ok := m.lookup(ctx, key, b); ok {
		observability.StrategyOutcomes.WithLabelValues(string(CacheFirst), "cache").Inc()
		return v, nil
	}
	return m.fetchAndStore(ctx, key, fetch, b)
}

func (m *Manager[T]) networkFirst(ctx context.Context, key string, fetch Fetcher[T], b Binding) (T, error) {
	v, err := fetch(ctx)
	if err == nil {
		m.store(ctx, key, v, b)
		observability.StrategyOutcomes.WithLabelValues(string(NetworkFirst), "network").Inc()
		return v, nil
	}

	if cached, ok := m.lookup(ctx, key, b); ok {
		slog.Warn("fetch failed, serving cached data", "key", key, "error", err)
		observability.StrategyOutcomes.WithLabelValues(string(NetworkFirst), "fallback").Inc()
		return cached, nil
	}
	observability.StrategyOutcomes.WithLabelValues(string(NetworkFirst), "error").Inc()
	var zero T
	return zero, err
}

func (m *Manager[T]) staleWhileRevalidate(ctx context.Context, key string, fetch Fetcher[T], b Binding) (T, error) {
	if v, ok := m.lookup(ctx, key, b); ok {
		m.refreshInBackground(ctx, key, fetch, b)
		observability.StrategyOutcomes.WithLabelValues(string(StaleWhileRevalidate), "cache").Inc()
		return v, nil
	}
	return m.fetchAndStore(ctx, key, fetch, b)
}

func (m *Manager[T]) networkOnly(ctx context.Context, key string, fetch Fetcher[T], b Binding) (T, error) {
	return m.fetchAndStore(ctx, key, fetch, b)
}

func (m *Manager[T]) cacheOnly(ctx context.Context, key string, b Binding) (T, error) {
	if v, ok := m.lookup(ctx, key, b); ok {
		observability.StrategyOutcomes.WithLabelValues(string(CacheOnly), "cache").Inc()
		return v, nil
	}
	observability.StrategyOutcomes.WithLabelValues(string(CacheOnly), "error").Inc()
	var zero T
	return zero, fmt.Errorf("%w for key: %s", ErrNoCachedData, key)
}

func (m *Manager[T]) fetchAndStore(ctx context.Context, key string, fetch Fetcher[T], b Binding) (T, error) {
	v, err := fetch(ctx)
	if err != nil {
		observability.StrategyOutcomes.WithLabelValues(string(b.Strategy), "error").Inc()
		var zero T
		return zero, err
	}
	m.store(ctx, key, v, b)
	observability.StrategyOutcomes.WithLabelValues(string(b.Strategy), "network").Inc()
	return v, nil
}

// lookup checks memory then persistent storage, promoting a persistent hit
// into memory.
func (m *Manager[T]) lookup(ctx context.Context, key string, b Binding) (T, bool) {
	if v, ok := m.memory.Get(key); ok {
		observability.CacheLookups.WithLabelValues(observability.LayerMemory, observability.ResultHit).Inc()
		return v, true
	}
	observability.CacheLookups.WithLabelValues(observability.LayerMemory, observability.ResultMiss).Inc()

	if v, ok := m.persistent.Get(ctx, key); ok {
		observability.CacheLookups.WithLabelValues(observability.LayerPersistent, observability.ResultHit).Inc()
		m.memory.Set(key, v, b.TTL)
		return v, true
	}
	observability.CacheLookups.WithLabelValues(observability.LayerPersistent, observability.ResultMiss).Inc()

	var zero T
	return zero, false
}

func (m *Manager[T]) store(ctx context.Context, key string, v T, b Binding) {
	m.memory.Set(key, v, b.TTL)
	m.persistent.Set(ctx, key, v, b.TTL)
}

// refreshInBackground fetches key on a detached goroutine. Concurrent
// refreshes of the same key share one fetch. Failures are logged only.
func (m *Manager[T]) refreshInBackground(ctx context.Context, key string, fetch Fetcher[T], b Binding) {
	ctx = context.WithoutCancel(ctx)

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()

		_, err, _ := m.refreshes.Do(key, func() (any, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			m.store(ctx, key, v, b)
			return nil, nil
		})
		if err != nil {
			slog.Warn("background cache refresh failed", "key", key, "error", err)
			observability.BackgroundRefreshes.WithLabelValues("error").Inc()
			return
		}
		observability.BackgroundRefreshes.WithLabelValues("success").Inc()
	}()
}

// Wait blocks until every background refresh started so far has finished.
func (m *Manager[T]) Wait() {
	m.inflight.Wait()
}

// Invalidate removes key from both caches.
func (m *Manager[T]) Invalidate(ctx context.Context, key string) {
	m.memory.Delete(key)
	m.persistent.Delete(ctx, key)
}

// InvalidateMatching removes every key containing substr from both caches
// and returns how many distinct keys were removed.
func (m *Manager[T]) InvalidateMatching(ctx context.Context, substr string) int {
	removed := make(map[string]struct{})
	for _, key := range m.memory.Keys() {
		if strings.Contains(key, substr) {
			m.memory.Delete(key)
			removed[key] = struct{}{}
		}
	}
	for _, key := range m.persistent.Keys(ctx) {
		if strings.Contains(key, substr) {
			m.persistent.Delete(ctx, key)
			removed[key] = struct{}{}
		}
	}
	return len(removed)
}

// Clear empties both caches.
func (m *Manager[T]) Clear(ctx context.Context) {
	m.memory.Clear()
	m.persistent.Clear(ctx)
}

// Stats returns both caches' statistics.
func (m *Manager[T]) Stats(ctx context.Context) Stats {
	return Stats{
		Memory:     m.memory.Stats(),
		Persistent: m.persistent.Stats(ctx),
	}
}

// Cleanup sweeps both caches.
func (m *Manager[T]) Cleanup(ctx context.Context) {
	m.memory.Cleanup()
	m.persistent.Cleanup(ctx)
}
