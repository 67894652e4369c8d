package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func newPersistent[T any](t *testing.T, clock *fakeClock) (*PersistentCache[T], *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewPersistentCache[T](store, PersistentConfig{Clock: clock.Now}), store
}

func TestPersistentCache(t *testing.T) {
	ctx := context.Background()

	t.Run("GetSetRoundTrip", func(t *testing.T) {
		c, _ := newPersistent[page](t, newFakeClock())
		c.Set(ctx, "home", page{Title: "Home", Tags: []string{"a"}}, 0)

		got, ok := c.Get(ctx, "home")
		require.True(t, ok)
		assert.Equal(t, page{Title: "Home", Tags: []string{"a"}}, got)
		assert.True(t, c.Has(ctx, "home"))
	})

	t.Run("StorageLayout", func(t *testing.T) {
		clock := newFakeClock()
		c, store := newPersistent[string](t, clock)
		c.Set(ctx, "k", "v", 90*time.Second)

		raw, ok, err := store.Get(ctx, "cache_k")
		require.NoError(t, err)
		require.True(t, ok)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(raw, &rec))
		assert.Equal(t, "v", rec["data"])
		assert.Equal(t, float64(clock.Now().UnixMilli()), rec["timestamp"])
		assert.Equal(t, float64(90000), rec["ttl"])
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		clock := newFakeClock()
		c, store := newPersistent[string](t, clock)
		c.Set(ctx, "k", "v", 100*time.Millisecond)
		clock.Advance(150 * time.Millisecond)

		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)

		_, present, _ := store.Get(ctx, "cache_k")
		assert.False(t, present, "expired record should be removed")
	})

	t.Run("MaxAgeCeiling", func(t *testing.T) {
		clock := newFakeClock()
		store := NewMemoryStore()
		c := NewPersistentCache[string](store, PersistentConfig{MaxAge: time.Second, Clock: clock.Now})
		c.Set(ctx, "k", "v", time.Hour)
		clock.Advance(1100 * time.Millisecond)

		assert.False(t, c.Has(ctx, "k"))
	})

	t.Run("CorruptEntryRemoved", func(t *testing.T) {
		c, store := newPersistent[string](t, newFakeClock())
		require.NoError(t, store.Set(ctx, "cache_bad", []byte("{not json")))

		_, ok := c.Get(ctx, "bad")
		assert.False(t, ok)

		_, present, _ := store.Get(ctx, "cache_bad")
		assert.False(t, present)
	})

	t.Run("RecordMissingFieldsRemoved", func(t *testing.T) {
		c, store := newPersistent[string](t, newFakeClock())
		require.NoError(t, store.Set(ctx, "cache_partial", []byte(`{"data":"x"}`)))

		assert.False(t, c.Has(ctx, "partial"))
		_, present, _ := store.Get(ctx, "cache_partial")
		assert.False(t, present)
	})

	t.Run("DataOfWrongShapeRemoved", func(t *testing.T) {
		clock := newFakeClock()
		c, store := newPersistent[page](t, clock)
		raw := []byte(`{"data":"just a string","timestamp":` +
			jsonInt(clock.Now().UnixMilli()) + `,"ttl":60000}`)
		require.NoError(t, store.Set(ctx, "cache_p", raw))

		_, ok := c.Get(ctx, "p")
		assert.False(t, ok)
		_, present, _ := store.Get(ctx, "cache_p")
		assert.False(t, present)
	})

	t.Run("KeysStripPrefixAndIgnoreForeignData", func(t *testing.T) {
		c, store := newPersistent[int](t, newFakeClock())
		require.NoError(t, store.Set(ctx, "other_x", []byte("1")))
		c.Set(ctx, "b", 2, 0)
		c.Set(ctx, "a", 1, 0)

		assert.Equal(t, []string{"a", "b"}, c.Keys(ctx))

		c.Clear(ctx)
		assert.Empty(t, c.Keys(ctx))
		_, present, _ := store.Get(ctx, "other_x")
		assert.True(t, present, "Clear must not touch keys outside the prefix")
	})

	t.Run("Delete", func(t *testing.T) {
		c, _ := newPersistent[int](t, newFakeClock())
		c.Set(ctx, "a", 1, 0)
		c.Delete(ctx, "a")
		c.Delete(ctx, "never-there")
		assert.False(t, c.Has(ctx, "a"))
	})
}

func TestPersistentCacheCleanup(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, store := newPersistent[string](t, clock)

	c.Set(ctx, "short", "1", time.Second)
	c.Set(ctx, "long", "2", time.Hour)
	require.NoError(t, store.Set(ctx, "cache_corrupt", []byte("garbage")))
	require.NoError(t, store.Set(ctx, "unrelated", []byte("garbage")))
	clock.Advance(2 * time.Second)

	c.Cleanup(ctx)

	assert.Equal(t, []string{"long"}, c.Keys(ctx))
	_, present, _ := store.Get(ctx, "unrelated")
	assert.True(t, present)
}

func TestPersistentCacheStats(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, _ := newPersistent[string](t, clock)

	assert.Equal(t, PersistentStats{}, c.Stats(ctx))

	first := clock.Now()
	c.Set(ctx, "a", "1", 0)
	clock.Advance(time.Minute)
	c.Set(ctx, "b", "2", 0)

	stats := c.Stats(ctx)
	assert.Equal(t, 2, stats.Size)
	assert.Positive(t, stats.TotalBytes)
	assert.Equal(t, first.UnixMilli(), stats.Oldest.UnixMilli())
	assert.Equal(t, first.Add(time.Minute).UnixMilli(), stats.Newest.UnixMilli())
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errStoreDown }
func (failingStore) Set(context.Context, string, []byte) error         { return errStoreDown }
func (failingStore) Delete(context.Context, string) error              { return errStoreDown }
func (failingStore) Keys(context.Context, string) ([]string, error)    { return nil, errStoreDown }
func (failingStore) Close() error                                      { return nil }

func TestPersistentCacheStoreFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	c := NewPersistentCache[string](failingStore{}, PersistentConfig{})

	assert.NotPanics(t, func() {
		c.Set(ctx, "k", "v", 0)
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
		c.Delete(ctx, "k")
		c.Clear(ctx)
		c.Cleanup(ctx)
		assert.Empty(t, c.Keys(ctx))
		assert.Equal(t, PersistentStats{}, c.Stats(ctx))
	})
}

func TestPersistentCacheUnencodableValue(t *testing.T) {
	ctx := context.Background()
	c, store := newPersistent[func()](t, newFakeClock())

	c.Set(ctx, "fn", func() {}, 0)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
