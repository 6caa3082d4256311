package deposits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	deposits map[string]*Deposit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deposits: make(map[string]*Deposit)}
}

func (s *MemoryStore) Create(ctx context.Context, d *Deposit) (*Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *d
	stored.ID = idgen.WithPrefix("dep_")
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.deposits[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deposits[id]
	if !ok {
		return nil, ErrDepositNotFound
	}
	out := *d
	return &out, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Deposit
	for _, d := range s.deposits {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sortDeposits(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Deposit
	for _, d := range s.deposits {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if !f.Before.IsZero() {
			if d.CreatedAt.After(f.Before) {
				continue
			}
			if d.CreatedAt.Equal(f.Before) && d.ID >= f.BeforeID {
				continue
			}
		}
		cp := *d
		out = append(out, &cp)
	}
	sortDeposits(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id, status string) (*Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deposits[id]
	if !ok {
		return nil, ErrDepositNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	out := *d
	return &out, nil
}

func (s *MemoryStore) SetSession(ctx context.Context, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deposits[id]
	if !ok {
		return ErrDepositNotFound
	}
	d.SessionID = sessionID
	d.UpdatedAt = time.Now()
	return nil
}

func sortDeposits(list []*Deposit) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
