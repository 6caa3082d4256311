package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// MemoryStore is an in-memory Store for tests and local development.
// Insertion order stands in for created_at ordering so selection queries
// stay deterministic even when tasks share a timestamp.
type MemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	seq     map[string]int64
	nextSeq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*Task),
		seq:   make(map[string]int64),
	}
}

func cloneTask(t *Task) *Task {
	cp := *t
	cp.ProductIDs = append([]string(nil), t.ProductIDs...)
	return &cp
}

func (m *MemoryStore) Create(ctx context.Context, t *Task) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneTask(t)
	if cp.ID == "" {
		cp.ID = idgen.WithPrefix("tsk_")
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	m.nextSeq++
	m.tasks[cp.ID] = cp
	m.seq[cp.ID] = m.nextSeq
	return cloneTask(cp), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (m *MemoryStore) Update(ctx context.Context, t *Task) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.tasks[t.ID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := cloneTask(t)
	cp.CreatedAt = existing.CreatedAt
	if len(cp.ProductIDs) == 0 {
		cp.ProductIDs = append([]string(nil), existing.ProductIDs...)
	}
	cp.UpdatedAt = time.Now().UTC()
	m.tasks[cp.ID] = cp
	return cloneTask(cp), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(m.tasks, id)
	delete(m.seq, id)
	return nil
}

// oldestMatch returns the lowest-sequence task satisfying pred.
func (m *MemoryStore) oldestMatch(pred func(*Task) bool) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Task
	var bestSeq int64
	for id, t := range m.tasks {
		if !pred(t) {
			continue
		}
		sq := m.seq[id]
		if best == nil || sq < bestSeq {
			best, bestSeq = t, sq
		}
	}
	if best == nil {
		return nil, ErrTaskNotFound
	}
	return cloneTask(best), nil
}

func (m *MemoryStore) PendingSpecial(ctx context.Context, userID string) (*Task, error) {
	return m.oldestMatch(func(t *Task) bool {
		return t.UserID == userID && !t.Played && t.Pending && t.Active && t.Special
	})
}

func (m *MemoryStore) SpecialAtRank(ctx context.Context, userID string, rank int) (*Task, error) {
	return m.oldestMatch(func(t *Task) bool {
		return t.UserID == userID && !t.Played && t.Active && t.Special && t.GameNumber == rank
	})
}

func (m *MemoryStore) PendingRegular(ctx context.Context, userID string) (*Task, error) {
	return m.oldestMatch(func(t *Task) bool {
		return t.UserID == userID && !t.Played && t.Pending && t.Active && !t.Special
	})
}

func (m *MemoryStore) OldestUnplayedRegular(ctx context.Context, userID string) (*Task, error) {
	return m.oldestMatch(func(t *Task) bool {
		return t.UserID == userID && !t.Played && t.Active && !t.Special
	})
}

func (m *MemoryStore) UnplayedSpecialsAtRank(ctx context.Context, userID string, rank int, excludeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tasks {
		if t.UserID == userID && t.Special && !t.Played && t.Active &&
			t.GameNumber == rank && t.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) SeenProductIDs(ctx context.Context, userID string, since, until time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, t := range m.tasks {
		if t.UserID != userID || !t.Active {
			continue
		}
		if t.CreatedAt.Before(since) || !t.CreatedAt.Before(until) {
			continue
		}
		for _, pid := range t.ProductIDs {
			if !seen[pid] {
				seen[pid] = true
				ids = append(ids, pid)
			}
		}
	}
	return ids, nil
}

func (m *MemoryStore) History(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var list []*Task
	for _, t := range m.tasks {
		if t.UserID != userID {
			continue
		}
		if !before.IsZero() {
			if t.CreatedAt.After(before) {
				continue
			}
			if t.CreatedAt.Equal(before) && t.ID >= beforeID {
				continue
			}
		}
		list = append(list, cloneTask(t))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if len(list) > limit+1 {
		list = list[:limit+1]
	}
	return list, nil
}

func (m *MemoryStore) ListSpecials(ctx context.Context) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*Task
	for _, t := range m.tasks {
		if t.Special {
			list = append(list, cloneTask(t))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return m.seq[list[i].ID] > m.seq[list[j].ID]
	})
	return list, nil
}

func (m *MemoryStore) UserIDsWithPendingSpecials(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, t := range m.tasks {
		if t.Special && t.Pending && !t.Played && t.Active && !seen[t.UserID] {
			seen[t.UserID] = true
			ids = append(ids, t.UserID)
		}
	}
	return ids, nil
}

func (m *MemoryStore) CountPlayed(ctx context.Context, userID string, specialOnly bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tasks {
		if t.UserID != userID || !t.Played || !t.Active {
			continue
		}
		if specialOnly && !t.Special {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryStore) CountSubmissionsBetween(ctx context.Context, since, until time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tasks {
		if !t.Active || (!t.Played && !t.Pending) {
			continue
		}
		if t.UpdatedAt.Before(since) || !t.UpdatedAt.Before(until) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryStore) SubmissionsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int]int)
	for _, t := range m.tasks {
		if !t.Active || (!t.Played && !t.Pending) {
			continue
		}
		updated := t.UpdatedAt.In(loc)
		if updated.Year() == year {
			counts[int(updated.Month())]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) RatingNoExists(ctx context.Context, ratingNo string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tasks {
		if t.RatingNo == ratingNo {
			return true, nil
		}
	}
	return false, nil
}
