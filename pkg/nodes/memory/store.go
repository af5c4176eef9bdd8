package memory

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("memory entry not found")

// Store keeps the values written by memory nodes.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// InMemoryStore is a process-local Store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = append([]byte(nil), value...)

	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), value...), nil
}
