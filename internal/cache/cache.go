// Package cache provides best-effort TTL caches for CMS responses.
//
// MemoryCache is a bounded in-process store; PersistentCache keeps JSON-encoded
// entries in a Store (file, SQLite, PostgreSQL, MongoDB, Redis or memory) under a
// key prefix. Neither cache ever returns an error to its caller: failures are
// logged and treated as misses, because the CMS remains the source of truth.
package cache

import "time"

const (
	// DefaultMemoryTTL is the entry lifetime used when Set is called without a TTL.
	DefaultMemoryTTL = 5 * time.Minute
	// DefaultMemoryMaxSize bounds the number of entries held in memory.
	DefaultMemoryMaxSize = 100
	// DefaultMemoryMaxAge is the hard age ceiling for memory entries, regardless of TTL.
	DefaultMemoryMaxAge = 30 * time.Minute
	// DefaultMemoryCleanupInterval is how often StartCleanup sweeps a memory cache.
	DefaultMemoryCleanupInterval = time.Minute

	// DefaultPersistentTTL is the entry lifetime for the persistent cache.
	DefaultPersistentTTL = 24 * time.Hour
	// DefaultPersistentMaxAge is the hard age ceiling for persisted entries.
	DefaultPersistentMaxAge = 7 * 24 * time.Hour
	// DefaultPrefix isolates cache records from unrelated data in the same store.
	DefaultPrefix = "cache_"
	// AppPrefix is the prefix the site's cache manager stores its entries under.
	AppPrefix = "app_cache_"
	// DefaultPersistentCleanupInterval is how often StartCleanup sweeps a persistent cache.
	DefaultPersistentCleanupInterval = time.Hour
)

// MemoryStats is a snapshot of a MemoryCache.
// Oldest and Newest are zero when the cache is empty.
type MemoryStats struct {
	Size      int       `json:"size"`
	MaxSize   int       `json:"max_size"`
	TotalHits int64     `json:"total_hits"`
	HitRate   float64   `json:"hit_rate"`
	Oldest    time.Time `json:"oldest,omitzero"`
	Newest    time.Time `json:"newest,omitzero"`
}

// PersistentStats is a snapshot of a PersistentCache.
type PersistentStats struct {
	Size       int       `json:"size"`
	TotalBytes int       `json:"total_bytes"`
	Oldest     time.Time `json:"oldest,omitzero"`
	Newest     time.Time `json:"newest,omitzero"`
}

func clockOrNow(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}

// expired reports whether an entry written at writtenAt is past its ttl or maxAge.
func expired(now, writtenAt time.Time, ttl, maxAge time.Duration) bool {
	age := now.Sub(writtenAt)
	return age > ttl || age > maxAge
}
