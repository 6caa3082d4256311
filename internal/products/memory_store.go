package products

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
	products map[string]*Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]*Product)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Product) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	stored.ID = idgen.WithPrefix("prd_")
	if stored.RatingNo == 0 {
		stored.RatingNo = seedRatingNo()
	}
	stored.CreatedAt = time.Now()
	s.products[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].PriceCents(), out[j].PriceCents()
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Product) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return nil, ErrProductNotFound
	}
	existing.Name = p.Name
	existing.Price = p.Price
	existing.Image = p.Image

	out := *existing
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}
