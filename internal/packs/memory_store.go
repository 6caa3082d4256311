package packs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
	"github.com/mbd888/trackrate/internal/money"
)

// MemoryStore is an in-memory pack store for tests and development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	packs map[string]*Pack
}

// NewMemoryStore creates a new in-memory pack store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{packs: make(map[string]*Pack)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Pack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.packs[id]
	if !ok {
		return nil, ErrPackNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, activeOnly bool) ([]*Pack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	packs := make([]*Pack, 0, len(m.packs))
	for _, p := range m.packs {
		if activeOnly && !p.Active {
			continue
		}
		cp := *p
		packs = append(packs, &cp)
	}
	sort.Slice(packs, func(i, j int) bool {
		vi, _ := money.Parse(packs[i].USDValue)
		vj, _ := money.Parse(packs[j].USDValue)
		return vi < vj
	})
	return packs, nil
}

func (m *MemoryStore) Create(ctx context.Context, pack *Pack) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pack.ID == "" {
		pack.ID = idgen.WithPrefix("pck_")
	}
	now := time.Now()
	pack.CreatedAt = now
	pack.UpdatedAt = now
	cp := *pack
	m.packs[pack.ID] = &cp
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, pack *Pack) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.packs[pack.ID]; !ok {
		return ErrPackNotFound
	}
	pack.UpdatedAt = time.Now()
	cp := *pack
	m.packs[pack.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.packs[id]; !ok {
		return ErrPackNotFound
	}
	delete(m.packs, id)
	return nil
}
