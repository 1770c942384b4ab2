package memory

import (
	"context"
	"sync"
)

// KVStore keeps documents in process memory. It is the default backend in
// local mode and the fake used by tests.
type KVStore struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// FailReads and FailWrites force errors, for exercising fallbacks.
	FailReads  error
	FailWrites error
}

func NewKVStore() *KVStore {
	return &KVStore{
		docs: make(map[string][]byte),
	}
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailReads != nil {
		return nil, false, s.FailReads
	}

	v, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}

	s.docs[key] = append([]byte(nil), value...)
	return nil
}
