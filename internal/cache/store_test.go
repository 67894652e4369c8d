package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "cache_a", []byte(`{"x":1}`)))
	require.NoError(t, s.Set(ctx, "cache_b", []byte("\x00\xffbinary")))
	require.NoError(t, s.Set(ctx, "cache%_like", []byte("wild")))
	require.NoError(t, s.Set(ctx, "other", []byte("o")))

	v, ok, err := s.Get(ctx, "cache_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"x":1}`), v)

	v, ok, err = s.Get(ctx, "cache_b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("\x00\xffbinary"), v, "values must round-trip byte for byte")

	keys, err := s.Keys(ctx, "cache_")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache_a", "cache_b"}, keys)

	require.NoError(t, s.Set(ctx, "cache_a", []byte("replaced")))
	v, _, _ = s.Get(ctx, "cache_a")
	assert.Equal(t, []byte("replaced"), v)

	require.NoError(t, s.Delete(ctx, "cache_a"))
	require.NoError(t, s.Delete(ctx, "cache_a"))
	_, ok, err = s.Get(ctx, "cache_a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'z'

	out, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), out)
	out[0] = 'y'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestFileStore(t *testing.T) {
	t.Run("Contract", func(t *testing.T) {
		exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "cache.json")))
	})

	t.Run("PersistsAcrossInstances", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "dir", "cache.json")

		first := NewFileStore(path)
		require.NoError(t, first.Set(ctx, "cache_k", []byte("v")))

		_, err := os.Stat(path)
		require.NoError(t, err, "file should be created with parent directories")

		second := NewFileStore(path)
		v, ok, err := second.Get(ctx, "cache_k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), v)
	})

	t.Run("UnparseableFileStartsEmpty", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

		s := NewFileStore(path)
		keys, err := s.Keys(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, s.Set(ctx, "k", []byte("v")))
		v, ok, _ := NewFileStore(path).Get(ctx, "k")
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), v)
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, SQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestPersistentCacheOverSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, SQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	defer s.Close()

	c := NewPersistentCache[map[string]int](s, PersistentConfig{Prefix: "pages_"})
	c.Set(ctx, "home", map[string]int{"views": 3}, 0)

	got, ok := c.Get(ctx, "home")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"views": 3}, got)
	assert.Equal(t, []string{"home"}, c.Keys(ctx))
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsToMemory", func(t *testing.T) {
		s, err := NewStore(ctx, StoreConfig{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("File", func(t *testing.T) {
		s, err := NewStore(ctx, StoreConfig{Backend: BackendFile, File: FileConfig{Path: filepath.Join(t.TempDir(), "c.json")}})
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, s)
	})

	t.Run("SQLite", func(t *testing.T) {
		s, err := NewStore(ctx, StoreConfig{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "c.db")}})
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStore{}, s)
	})

	t.Run("PostgreSQLRequiresURL", func(t *testing.T) {
		_, err := NewStore(ctx, StoreConfig{Backend: BackendPostgreSQL})
		assert.Error(t, err)
	})

	t.Run("MongoDBRequiresURL", func(t *testing.T) {
		_, err := NewStore(ctx, StoreConfig{Backend: BackendMongoDB})
		assert.Error(t, err)
	})

	t.Run("RedisRejectsBadURL", func(t *testing.T) {
		_, err := NewStore(ctx, StoreConfig{Backend: BackendRedis, Redis: RedisConfig{URL: "not-a-url"}})
		assert.Error(t, err)
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		_, err := NewStore(ctx, StoreConfig{Backend: "etcd"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown cache backend")
	})
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `cache_`, escapeGlob("cache_"))
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}
