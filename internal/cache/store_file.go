package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultFilePath is where the file store keeps its data when no path is set.
const DefaultFilePath = ".cache/sitefront-cache.json"

// FileStore implements Store using a single local JSON file.
// This is suitable for single-instance deployments.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	data     map[string][]byte
	loaded   bool
}

// NewFileStore creates a file-backed store. The file is read on first use.
func NewFileStore(filePath string) *FileStore {
	if filePath == "" {
		filePath = DefaultFilePath
	}
	return &FileStore{filePath: filePath}
}

// load reads the file once. A missing file is an empty store; an unreadable
// one is logged and replaced on the next write.
func (s *FileStore) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.data = make(map[string][]byte)

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read cache file", "path", s.filePath, "error", err)
		}
		return
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		slog.Warn("discarding unparseable cache file", "path", s.filePath, "error", err)
		s.data = make(map[string][]byte)
	}
}

// flush writes the whole map atomically using temp file + rename.
func (s *FileStore) flush() error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache file: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return s.flush()
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the file store; every write is already flushed.
func (s *FileStore) Close() error {
	return nil
}
