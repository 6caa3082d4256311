package reset

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the tracker in process memory for tests.
type MemoryStore struct {
	mu sync.Mutex
	t  Tracker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{t: Tracker{ResetIntervalHours: 24, UpdatedAt: time.Now().UTC()}}
}

func (s *MemoryStore) Get(ctx context.Context) (*Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.t
	return &out, nil
}

func (s *MemoryStore) ClaimReset(ctx context.Context, boundary time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.t.LastResetTime.Before(boundary) {
		return false, nil
	}
	s.t.LastResetTime = boundary.UTC()
	s.t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) SetInterval(ctx context.Context, hours int) (*Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.ResetIntervalHours = hours
	s.t.UpdatedAt = time.Now().UTC()
	out := s.t
	return &out, nil
}
