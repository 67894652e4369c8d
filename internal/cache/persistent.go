package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// PersistentConfig configures a PersistentCache. Zero values select the defaults.
type PersistentConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
	MaxAge time.Duration `yaml:"max_age"`
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time `yaml:"-"`
}

// record is the stored form of an entry. Timestamp and TTL are milliseconds so
// the layout stays readable from other tooling.
type record struct {
	Data      json.RawMessage `json:"data"`
	Timestamp *int64          `json:"timestamp"`
	TTL       *int64          `json:"ttl"`
}

var errMalformedRecord = errors.New("malformed cache record")

func decodeRecord(raw []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, err
	}
	if rec.Timestamp == nil || rec.TTL == nil || len(rec.Data) == 0 {
		return record{}, errMalformedRecord
	}
	return rec, nil
}

func (r record) writtenAt() time.Time {
	return time.UnixMilli(*r.Timestamp)
}

func (r record) ttl() time.Duration {
	return time.Duration(*r.TTL) * time.Millisecond
}

// PersistentCache keeps JSON records in a Store under a key prefix. Every
// failure in the underlying store is logged and treated as a miss.
type PersistentCache[T any] struct {
	store  Store
	ttl    time.Duration
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

// NewPersistentCache creates a persistent cache over store.
func NewPersistentCache[T any](store Store, cfg PersistentConfig) *PersistentCache[T] {
	c := &PersistentCache[T]{
		store:  store,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		maxAge: cfg.MaxAge,
		now:    clockOrNow(cfg.Clock),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultPersistentTTL
	}
	if c.prefix == "" {
		c.prefix = DefaultPrefix
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultPersistentMaxAge
	}
	return c
}

// Prefix returns the key prefix the cache writes under.
func (c *PersistentCache[T]) Prefix() string {
	return c.prefix
}

// Set stores value under key. A ttl <= 0 uses the cache default.
func (c *PersistentCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("persistent cache: failed to encode value", "key", key, "error", err)
		return
	}
	ts := c.now().UnixMilli()
	ttlMs := ttl.Milliseconds()
	raw, err := json.Marshal(record{Data: data, Timestamp: &ts, TTL: &ttlMs})
	if err != nil {
		slog.Warn("persistent cache: failed to encode record", "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, c.prefix+key, raw); err != nil {
		slog.Warn("persistent cache: write failed", "key", key, "error", err)
	}
}

// Get returns the value for key. Corrupt, undecodable, expired and over-age
// records are removed and reported as absent.
func (c *PersistentCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	storeKey := c.prefix + key

	raw, ok, err := c.store.Get(ctx, storeKey)
	if err != nil {
		slog.Warn("persistent cache: read failed", "key", key, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		slog.Warn("persistent cache: removing corrupt entry", "key", key, "error", err)
		c.remove(ctx, storeKey)
		return zero, false
	}
	if expired(c.now(), rec.writtenAt(), rec.ttl(), c.maxAge) {
		c.remove(ctx, storeKey)
		return zero, false
	}

	var value T
	if err := json.Unmarshal(rec.Data, &value); err != nil {
		slog.Warn("persistent cache: removing undecodable entry", "key", key, "error", err)
		c.remove(ctx, storeKey)
		return zero, false
	}
	return value, true
}

// Has reports whether Get would return a value.
func (c *PersistentCache[T]) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Delete removes key.
func (c *PersistentCache[T]) Delete(ctx context.Context, key string) {
	c.remove(ctx, c.prefix+key)
}

// Clear removes every record under the prefix. Data outside the prefix is untouched.
func (c *PersistentCache[T]) Clear(ctx context.Context) {
	for _, storeKey := range c.storeKeys(ctx) {
		c.remove(ctx, storeKey)
	}
}

// Keys returns the logical keys under the prefix, sorted.
func (c *PersistentCache[T]) Keys(ctx context.Context) []string {
	storeKeys := c.storeKeys(ctx)
	keys := make([]string, 0, len(storeKeys))
	for _, k := range storeKeys {
		keys = append(keys, strings.TrimPrefix(k, c.prefix))
	}
	sort.Strings(keys)
	return keys
}

// Cleanup removes expired, over-age and unparseable records under the prefix.
func (c *PersistentCache[T]) Cleanup(ctx context.Context) {
	now := c.now()
	removed := 0
	for _, storeKey := range c.storeKeys(ctx) {
		raw, ok, err := c.store.Get(ctx, storeKey)
		if err != nil {
			slog.Warn("persistent cache: read failed during cleanup", "key", storeKey, "error", err)
			continue
		}
		if !ok {
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil || expired(now, rec.writtenAt(), rec.ttl(), c.maxAge) {
			c.remove(ctx, storeKey)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("persistent cache cleanup", "removed", removed)
	}
}

// Stats summarizes the records under the prefix. Unparseable records count
// toward Size and TotalBytes but not toward Oldest/Newest.
func (c *PersistentCache[T]) Stats(ctx context.Context) PersistentStats {
	var stats PersistentStats
	for _, storeKey := range c.storeKeys(ctx) {
		raw, ok, err := c.store.Get(ctx, storeKey)
		if err != nil || !ok {
			continue
		}
		stats.Size++
		stats.TotalBytes += len(raw)

		rec, err := decodeRecord(raw)
		if err != nil {
			continue
		}
		at := rec.writtenAt()
		if stats.Oldest.IsZero() || at.Before(stats.Oldest) {
			stats.Oldest = at
		}
		if at.After(stats.Newest) {
			stats.Newest = at
		}
	}
	return stats
}

// StartCleanup sweeps the cache every interval until the returned stop
// function is called. A non-positive interval uses DefaultPersistentCleanupInterval.
func (c *PersistentCache[T]) StartCleanup(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultPersistentCleanupInterval
	}
	return startLoop(interval, func() {
		c.Cleanup(context.Background())
	})
}

func (c *PersistentCache[T]) storeKeys(ctx context.Context) []string {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		slog.Warn("persistent cache: listing keys failed", "prefix", c.prefix, "error", err)
		return nil
	}
	return keys
}

func (c *PersistentCache[T]) remove(ctx context.Context, storeKey string) {
	if err := c.store.Delete(ctx, storeKey); err != nil {
		slog.Warn("persistent cache: delete failed", "key", storeKey, "error", err)
	}
}
