package store

import (
	"context"
	"sync"
)

type memoryStore struct {
	items map[string]string
	mutex sync.RWMutex
}

// NewMemory builds an in-memory store. Intended for tests and single
// process deployments; nothing survives a restart.
func NewMemory() Store {
	return &memoryStore{items: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	value, ok := s.items[key]
	s.mutex.RUnlock()
	if !ok {
		return "", &Error{Op: "get", Key: key, Err: ErrKeyNotFound}
	}
	return value, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	s.items[key] = value
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.items, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Keys(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	return nil
}
