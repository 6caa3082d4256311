package withdrawals

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	withdrawals map[string]*Withdrawal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{withdrawals: make(map[string]*Withdrawal)}
}

func (s *MemoryStore) Create(ctx context.Context, w *Withdrawal) (*Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *w
	stored.ID = idgen.WithPrefix("wd_")
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.withdrawals[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	out := *w
	return &out, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Withdrawal
	for _, w := range s.withdrawals {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sortWithdrawals(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Withdrawal
	for _, w := range s.withdrawals {
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		if !f.Before.IsZero() {
			if w.CreatedAt.After(f.Before) {
				continue
			}
			if w.CreatedAt.Equal(f.Before) && w.ID >= f.BeforeID {
				continue
			}
		}
		cp := *w
		out = append(out, &cp)
	}
	sortWithdrawals(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkReviewed(ctx context.Context, id, status string) (*Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	if w.IsReviewed {
		return nil, ErrAlreadyReviewed
	}
	w.Status = status
	w.IsReviewed = true
	w.UpdatedAt = time.Now()
	out := *w
	return &out, nil
}

func (s *MemoryStore) SetTxHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return ErrWithdrawalNotFound
	}
	w.TxHash = hash
	w.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, w := range s.withdrawals {
		if w.UserID == userID && !w.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func sortWithdrawals(list []*Withdrawal) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
