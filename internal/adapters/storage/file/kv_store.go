package file

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// KVStore keeps one file per key under a base directory. Writes go to a
// temporary file that is renamed over the target.
type KVStore struct {
	basePath string
	mu       sync.RWMutex
}

func NewKVStore(basePath string) (*KVStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &KVStore{basePath: basePath}, nil
}

func (s *KVStore) path(key string) string {
	return filepath.Join(s.basePath, url.PathEscape(key)+".json")
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("file kv get %q: %w", key, err)
	}
	return data, true, nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("file kv write %q: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("file kv rename %q: %w", key, err)
	}
	return nil
}
