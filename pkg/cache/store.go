// Package cache implements the content-addressed transform cache. Keys
// combine a stable file identity with a content hash, so a stale entry can
// never be served for changed content: the key itself changes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/cespare/xxhash/v2"
)

// Entry is a cached transform result
type Entry struct {
	Content       string    `json:"content"`
	TransformedBy string    `json:"transformedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store is the backing storage contract. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
}

// Statistics reports store usage
type Statistics struct {
	Hits    int64
	Misses  int64
	Size    int64
	HitRate float64
}

// MemoryStore keeps entries in a map. Useful for single runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	hits    int64
	misses  int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false, nil
	}
	s.hits++
	copied := entry
	return &copied, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = *entry
	return nil
}

// Stats returns hit/miss statistics
func (s *MemoryStore) Stats() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.hits + s.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.hits) / float64(total)
	}
	return Statistics{
		Hits:    s.hits,
		Misses:  s.misses,
		Size:    int64(len(s.entries)),
		HitRate: hitRate,
	}
}

// FileStore persists entries as JSON files sharded by key prefix, letting
// transform results survive across runs.
type FileStore struct {
	dir string
}

// DefaultCacheDir is where FileStore lives unless overridden
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "copytree", "transforms")
}

// NewFileStore creates (if needed) and opens an on-disk store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// entryPath hashes the key into a filesystem-safe sharded path
func (s *FileStore) entryPath(key string) string {
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(key))
	return filepath.Join(s.dir, sum[:2], sum+".json")
}

func (s *FileStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	raw, err := os.ReadFile(s.entryPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is a miss, not a failure
		return nil, false, nil
	}
	return &entry, true, nil
}

func (s *FileStore) Set(_ context.Context, key string, entry *Entry) error {
	path := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write-then-rename keeps concurrent readers off partial entries
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
