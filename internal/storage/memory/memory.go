// Package memory provides a thread-safe in-memory implementation of storage.Store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hearthside/client-go/internal/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
// Suitable for testing and for hosts that do not need to survive restarts.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ storage.Store = (*Store)(nil)

// New creates a new empty in-memory Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
