// Package holdband manages the [min, max] intervals bounding the random
// slice added to a balance when a special task's amount is computed.
package holdband

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/mbd888/trackrate/internal/money"
)

var (
	ErrBandNotFound = errors.New("hold band not found")
	ErrInvalidRange = errors.New("invalid hold range")
)

// Band is a named reserve interval. Amounts are 2-decimal strings.
type Band struct {
	ID        string    `json:"id"`
	MinAmount string    `json:"minAmount"`
	MaxAmount string    `json:"maxAmount"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Bounds returns the band's interval in cents.
func (b *Band) Bounds() (lo, hi int64, ok bool) {
	lo, okLo := money.Parse(b.MinAmount)
	hi, okHi := money.Parse(b.MaxAmount)
	if !okLo || !okHi || lo <= 0 || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// Slice draws a uniform random amount from the band, in cents.
func (b *Band) Slice(rng *rand.Rand) (int64, error) {
	lo, hi, ok := b.Bounds()
	if !ok {
		return 0, ErrInvalidRange
	}
	if lo == hi {
		return lo, nil
	}
	return lo + rng.Int63n(hi-lo+1), nil
}

// Store persists hold bands.
type Store interface {
	Get(ctx context.Context, id string) (*Band, error)
	List(ctx context.Context) ([]*Band, error)
	Create(ctx context.Context, band *Band) error
	Update(ctx context.Context, band *Band) error
	Delete(ctx context.Context, id string) error
}

// Service wraps a Store with validation.
type Service struct {
	store Store
}

// NewService creates a hold band service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns one band.
func (s *Service) Get(ctx context.Context, id string) (*Band, error) {
	return s.store.Get(ctx, id)
}

// List returns all bands, newest first.
func (s *Service) List(ctx context.Context) ([]*Band, error) {
	return s.store.List(ctx)
}

// Create validates and stores a new band.
func (s *Service) Create(ctx context.Context, minAmount, maxAmount string, active bool) (*Band, error) {
	band := &Band{MinAmount: minAmount, MaxAmount: maxAmount, Active: active}
	if _, _, ok := band.Bounds(); !ok {
		return nil, ErrInvalidRange
	}
	if err := s.store.Create(ctx, band); err != nil {
		return nil, err
	}
	return band, nil
}

// Update replaces a band's range and active flag.
func (s *Service) Update(ctx context.Context, id, minAmount, maxAmount string, active bool) (*Band, error) {
	band, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	band.MinAmount = minAmount
	band.MaxAmount = maxAmount
	band.Active = active
	if _, _, ok := band.Bounds(); !ok {
		return nil, ErrInvalidRange
	}
	if err := s.store.Update(ctx, band); err != nil {
		return nil, err
	}
	return band, nil
}

// Delete removes a band.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
