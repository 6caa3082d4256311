package settings

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	current Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{current: *Defaults()}
}

func (s *MemoryStore) Get(ctx context.Context) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.current
	return &out, nil
}

func (s *MemoryStore) Update(ctx context.Context, in *Settings) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = *in
	s.current.UpdatedAt = time.Now()
	out := s.current
	return &out, nil
}
