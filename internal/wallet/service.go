package wallet

import (
	"context"
)

// Service wraps a Store with validation and metrics. All amounts are
// int64 cents; callers parse decimal strings at the API boundary.
type Service struct {
	store Store
}

// NewService creates a wallet service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns a user's wallet.
func (s *Service) Get(ctx context.Context, userID string) (*Wallet, error) {
	return s.store.Get(ctx, userID)
}

// Create provisions a zero wallet for a new user and auto-assigns a pack.
func (s *Service) Create(ctx context.Context, userID string) (*Wallet, error) {
	done := observeOp("create")
	defer done()
	return s.store.Create(ctx, userID)
}

// Credit adds funds, clearing any deficit before merging held funds back.
func (s *Service) Credit(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("credit")
	defer done()
	return s.store.Credit(ctx, userID, amount)
}

// Debit removes funds. When the balance cannot cover the amount the wallet
// goes negative by the deficit and the full amount is reserved on hold;
// that path requires no prior hold to be outstanding.
func (s *Service) Debit(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("debit")
	defer done()
	return s.store.Debit(ctx, userID, amount)
}

// CreditCommission adds to the commission running total.
func (s *Service) CreditCommission(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("credit_commission")
	defer done()
	return s.store.CreditCommission(ctx, userID, amount)
}

// DebitCommission subtracts from the commission running total.
func (s *Service) DebitCommission(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("debit_commission")
	defer done()
	return s.store.DebitCommission(ctx, userID, amount)
}

// AddHold reserves funds without touching the balance. Legacy path; the
// sequential debit supersedes it for special-task flow. Rejected while the
// balance is positive so the exclusion invariant survives.
func (s *Service) AddHold(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("add_hold")
	defer done()
	return s.store.AddHold(ctx, userID, amount)
}

// ReleaseHold transfers the entire held amount back to the balance.
func (s *Service) ReleaseHold(ctx context.Context, userID string) (*Wallet, error) {
	done := observeOp("release_hold")
	defer done()
	return s.store.ReleaseHold(ctx, userID)
}

// Adjust applies a signed delta straight to the balance. Referral bonuses
// and admin corrections use this; the hold-merge rule still applies so the
// balance/on_hold exclusion holds after a positive adjustment.
func (s *Service) Adjust(ctx context.Context, userID string, delta int64) (*Wallet, error) {
	if delta == 0 {
		return s.store.Get(ctx, userID)
	}
	done := observeOp("adjust")
	defer done()
	return s.store.Adjust(ctx, userID, delta)
}

// SetSalary replaces the salary total and moves the difference through the
// balance, so raising a salary by 20.00 also credits 20.00.
func (s *Service) SetSalary(ctx context.Context, userID string, salary int64) (*Wallet, error) {
	if salary < 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("set_salary")
	defer done()
	return s.store.SetSalary(ctx, userID, salary)
}

// SetCreditScore sets the 0-100 display score.
func (s *Service) SetCreditScore(ctx context.Context, userID string, score float64) (*Wallet, error) {
	if score < 0 || score > 100 {
		return nil, ErrInvalidScore
	}
	done := observeOp("set_credit_score")
	defer done()
	return s.store.SetCreditScore(ctx, userID, score)
}

// SetPack pins a wallet to a pack.
func (s *Service) SetPack(ctx context.Context, userID, packID string) (*Wallet, error) {
	done := observeOp("set_pack")
	defer done()
	return s.store.SetPack(ctx, userID, packID)
}

// ZeroAllSalaries clears every wallet's salary. The daily reset calls this.
func (s *Service) ZeroAllSalaries(ctx context.Context) (int, error) {
	done := observeOp("zero_salaries")
	defer done()
	return s.store.ZeroAllSalaries(ctx)
}

// ReassignPack re-runs pack selection for every wallet referencing the
// given pack. Called when a pack is deleted or deactivated.
func (s *Service) ReassignPack(ctx context.Context, packID string) (int, error) {
	done := observeOp("reassign_pack")
	defer done()
	return s.store.ReassignPack(ctx, packID)
}
