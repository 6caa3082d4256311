package holdband

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// MemoryStore is an in-memory hold band store for tests and development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	bands map[string]*Band
}

// NewMemoryStore creates a new in-memory hold band store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bands: make(map[string]*Band)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Band, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bands[id]
	if !ok {
		return nil, ErrBandNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Band, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bands := make([]*Band, 0, len(m.bands))
	for _, b := range m.bands {
		cp := *b
		bands = append(bands, &cp)
	}
	sort.Slice(bands, func(i, j int) bool {
		return bands[i].CreatedAt.After(bands[j].CreatedAt)
	})
	return bands, nil
}

func (m *MemoryStore) Create(ctx context.Context, band *Band) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if band.ID == "" {
		band.ID = idgen.WithPrefix("hba_")
	}
	now := time.Now()
	band.CreatedAt = now
	band.UpdatedAt = now
	cp := *band
	m.bands[band.ID] = &cp
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, band *Band) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bands[band.ID]; !ok {
		return ErrBandNotFound
	}
	band.UpdatedAt = time.Now()
	cp := *band
	m.bands[band.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bands[id]; !ok {
		return ErrBandNotFound
	}
	delete(m.bands, id)
	return nil
}
