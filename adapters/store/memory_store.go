package store

import (
	"context"
	"sync"

	"github.com/mbessarab/seedkey-client-sdk/ports"
)

// MemoryStore is an in-memory implementation of the Store interface. It is
// the default session backing in environments without durable storage and
// the backing used by tests.
type MemoryStore struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

// Set writes a value under key.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Get retrieves a value by key. Missing keys yield an empty string.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.values[key], nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
