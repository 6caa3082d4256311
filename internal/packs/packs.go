// Package packs manages membership tiers. A pack sets a user's daily
// mission count, set count, commission percentages, withdrawal allowance
// and the minimum balance required to review.
package packs

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/wallet"
)

var (
	ErrPackNotFound = errors.New("pack not found")
	ErrPackInactive = errors.New("pack is not active")
	ErrInvalidPack  = errors.New("invalid pack definition")
	ErrNoActivePack = errors.New("no active pack available")
)

// Pack is a membership tier. Money fields are 2-decimal strings;
// percentages are plain numbers (0.5 means 0.5%).
type Pack struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	USDValue                 string    `json:"usdValue"`
	DailyMissions            int       `json:"dailyMissions"`
	NumberOfSets             int       `json:"numberOfSets"`
	ProfitPercentage         float64   `json:"profitPercentage"`
	SpecialProductPercentage float64   `json:"specialProductPercentage"`
	MinimumBalance           string    `json:"minimumBalanceForSubmissions"`
	DailyWithdrawals         int       `json:"dailyWithdrawals"`
	PaymentBonusThreshold    string    `json:"paymentLimitToTriggerBonus,omitempty"`
	PaymentBonus             string    `json:"paymentBonus,omitempty"`
	ShortDescription         string    `json:"shortDescription,omitempty"`
	Description              string    `json:"description,omitempty"`
	Icon                     string    `json:"icon,omitempty"`
	CreatedBy                string    `json:"createdBy,omitempty"`
	Active                   bool      `json:"isActive"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// CommissionPercentage returns the special-task percentage when set,
// else five times the regular profit percentage.
func (p *Pack) CommissionPercentage() float64 {
	if p.SpecialProductPercentage > 0 {
		return p.SpecialProductPercentage
	}
	return 5 * p.ProfitPercentage
}

// Store persists packs.
type Store interface {
	Get(ctx context.Context, id string) (*Pack, error)
	List(ctx context.Context, activeOnly bool) ([]*Pack, error)
	Create(ctx context.Context, pack *Pack) error
	Update(ctx context.Context, pack *Pack) error
	Delete(ctx context.Context, id string) error
}

// WalletReassigner re-runs pack selection for wallets referencing a pack.
// The wallet service implements this.
type WalletReassigner interface {
	ReassignPack(ctx context.Context, packID string) (int, error)
}

// Service wraps a Store with validation and wallet reassignment on
// deactivation or deletion.
type Service struct {
	store   Store
	wallets WalletReassigner // optional
}

// NewService creates a pack service. wallets may be nil.
func NewService(store Store, wallets WalletReassigner) *Service {
	return &Service{store: store, wallets: wallets}
}

// Get returns one pack.
func (s *Service) Get(ctx context.Context, id string) (*Pack, error) {
	return s.store.Get(ctx, id)
}

// GetActive returns a pack only when it is active.
func (s *Service) GetActive(ctx context.Context, id string) (*Pack, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrPackInactive
	}
	return p, nil
}

// List returns packs, optionally active ones only.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Pack, error) {
	return s.store.List(ctx, activeOnly)
}

// Create validates and stores a new pack.
func (s *Service) Create(ctx context.Context, pack *Pack) (*Pack, error) {
	if err := validatePack(pack); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, pack); err != nil {
		return nil, err
	}
	return pack, nil
}

// Update replaces a pack definition. Deactivating a pack reassigns every
// wallet referencing it.
func (s *Service) Update(ctx context.Context, pack *Pack) (*Pack, error) {
	if err := validatePack(pack); err != nil {
		return nil, err
	}
	prev, err := s.store.Get(ctx, pack.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, pack); err != nil {
		return nil, err
	}
	if prev.Active && !pack.Active && s.wallets != nil {
		if _, err := s.wallets.ReassignPack(ctx, pack.ID); err != nil {
			return nil, err
		}
	}
	return pack, nil
}

// Delete removes a pack and reassigns every wallet referencing it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.wallets != nil {
		if _, err := s.wallets.ReassignPack(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SelectForBalance picks the active pack with the greatest usd_value the
// balance covers, else the cheapest active pack.
func (s *Service) SelectForBalance(ctx context.Context, balance int64) (*Pack, error) {
	all, err := s.store.List(ctx, true)
	if err != nil {
		return nil, err
	}
	var best, cheapest *Pack
	var bestVal, cheapVal int64
	for _, p := range all {
		v, _ := money.Parse(p.USDValue)
		if v <= balance && (best == nil || v > bestVal) {
			best, bestVal = p, v
		}
		if cheapest == nil || v < cheapVal {
			cheapest, cheapVal = p, v
		}
	}
	if best != nil {
		return best, nil
	}
	if cheapest != nil {
		return cheapest, nil
	}
	return nil, ErrNoActivePack
}

// PackOptions implements wallet.PackSource for auto-assignment.
func (s *Service) PackOptions(ctx context.Context) ([]wallet.PackOption, error) {
	all, err := s.store.List(ctx, false)
	if err != nil {
		return nil, err
	}
	opts := make([]wallet.PackOption, 0, len(all))
	for _, p := range all {
		v, _ := money.Parse(p.USDValue)
		opts = append(opts, wallet.PackOption{ID: p.ID, USDValue: v, Active: p.Active})
	}
	return opts, nil
}

func validatePack(pack *Pack) error {
	if pack.Name == "" || pack.DailyMissions <= 0 || pack.NumberOfSets <= 0 {
		return ErrInvalidPack
	}
	if _, ok := money.Parse(pack.USDValue); !ok {
		return ErrInvalidPack
	}
	if pack.ProfitPercentage < 0 || pack.SpecialProductPercentage < 0 {
		return ErrInvalidPack
	}
	if pack.MinimumBalance != "" {
		if _, ok := money.Parse(pack.MinimumBalance); !ok {
			return ErrInvalidPack
		}
	}
	return nil
}
