package watermark

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore keeps watermarks in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]time.Time)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.values[key]
	return t, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = t.UTC()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values), nil
}
