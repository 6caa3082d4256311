// Package products is the album catalog and the balance-band picker the task
// engine draws assignments from.
//
// Fresh assignments prefer albums priced close to the worker's balance. Pick
// ranks the not-yet-seen catalog into descending bands relative to balance B
// (exact match, then [0.8B,B), [0.6B,0.8B) and so on down to [0.01B,0.05B))
// and selects uniformly from the highest non-empty band. When every band is
// empty it falls back across the whole catalog: the most expensive affordable
// album, else the cheapest album overall.
package products

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mbd888/trackrate/internal/money"
)

// Errors
var (
	ErrProductNotFound = errors.New("products: not found")
	ErrInvalidProduct  = errors.New("products: invalid product")
	ErrEmptyCatalog    = errors.New("products: catalog is empty")
)

// Product is one album in the catalog. Price is a two-decimal USD string.
// RatingNo is the displayed review count, seeded at creation.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Image     string    `json:"image,omitempty"`
	RatingNo  int       `json:"ratingNo"`
	CreatedAt time.Time `json:"createdAt"`
}

// PriceCents returns the price in integer cents.
func (p *Product) PriceCents() int64 {
	cents, _ := money.Parse(p.Price)
	return cents
}

// Store persists the catalog.
type Store interface {
	Create(ctx context.Context, p *Product) (*Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	// List returns the catalog ordered by ascending price.
	List(ctx context.Context) ([]*Product, error)
	Update(ctx context.Context, p *Product) (*Product, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Service wraps the Store with validation and the assignment picker.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Product, error) {
	return s.store.List(ctx)
}

func (s *Service) Update(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Count returns the catalog size. The admin dashboard shows this.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// PickForAssignment selects the album for a fresh task. seenIDs are albums
// already assigned to the worker today; they are excluded from the band
// ranking but remain eligible for the whole-catalog fallback. The caller owns
// rng and any serialization around it.
func (s *Service) PickForAssignment(ctx context.Context, balance int64, seenIDs []string, rng *rand.Rand) (*Product, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]bool, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = true
	}
	var unseen []*Product
	for _, p := range all {
		if !seen[p.ID] {
			unseen = append(unseen, p)
		}
	}

	if p := pickFromBands(unseen, balance, rng); p != nil {
		return p, nil
	}

	// Fallback over the full catalog, played albums included: dearest
	// affordable album, else the cheapest. List is price-ascending.
	var affordable *Product
	for _, p := range all {
		if p.PriceCents() <= balance {
			affordable = p
		}
	}
	if affordable != nil {
		return affordable, nil
	}
	return all[0], nil
}

// Band edges as fractions of the balance, highest priority first. Each entry
// is [lo, hi) except the exact-match band handled separately.
var bandEdges = [][2]float64{
	{0.80, 1.00},
	{0.60, 0.80},
	{0.40, 0.60},
	{0.20, 0.40},
	{0.10, 0.20},
	{0.05, 0.10},
	{0.01, 0.05},
}

func pickFromBands(candidates []*Product, balance int64, rng *rand.Rand) *Product {
	if len(candidates) == 0 {
		return nil
	}

	var exact []*Product
	for _, p := range candidates {
		if p.PriceCents() == balance {
			exact = append(exact, p)
		}
	}
	if len(exact) > 0 {
		return exact[rng.Intn(len(exact))]
	}

	b := float64(balance)
	for _, edges := range bandEdges {
		lo := b * edges[0]
		hi := b * edges[1]
		var band []*Product
		for _, p := range candidates {
			price := float64(p.PriceCents())
			if price >= lo && price < hi {
				band = append(band, p)
			}
		}
		if len(band) > 0 {
			return band[rng.Intn(len(band))]
		}
	}
	return nil
}

func validateProduct(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	cents, ok := money.Parse(p.Price)
	if !ok || cents <= 0 {
		return fmt.Errorf("%w: price must be a positive amount", ErrInvalidProduct)
	}
	return nil
}
