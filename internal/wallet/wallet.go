// Package wallet tracks worker balances on the platform.
//
// Each user owns exactly one wallet holding a (balance, on_hold) pair.
// The pair is a small state machine: at most one of the two is ever
// positive. A debit that exceeds the balance drives the balance negative
// and reserves the full amount on hold; the next sufficient credit clears
// the deficit and merges the hold back into the balance. Commission and
// salary are separate running totals that never interact with the hold.
package wallet

import (
	"context"
	"errors"
	"time"
)

var (
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrWalletExists    = errors.New("wallet already exists")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrHoldOutstanding = errors.New("debit while funds on hold")
	ErrHoldConflict    = errors.New("cannot hold while balance is positive")
	ErrNothingHeld     = errors.New("no funds on hold")
	ErrInvalidScore    = errors.New("credit score out of range")
	ErrPackNotFound    = errors.New("pack not found")
)

// Wallet is a user's money state. Amounts are decimal strings with two
// fractional digits; Balance may be negative while OnHold is positive.
type Wallet struct {
	UserID      string    `json:"userId"`
	Balance     string    `json:"balance"`
	OnHold      string    `json:"onHold"`
	Commission  string    `json:"commission"`
	Salary      string    `json:"salary"`
	CreditScore float64   `json:"creditScore"`
	PackID      string    `json:"packId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PackOption is the slice of pack data auto-assignment needs.
type PackOption struct {
	ID       string
	USDValue int64 // cents
	Active   bool
}

// PackSource lists pack options for auto-assignment. The packs service
// implements this; the memory store uses it directly, the Postgres store
// reads the packs table inside its own transactions instead.
type PackSource interface {
	PackOptions(ctx context.Context) ([]PackOption, error)
}

// SelectPack picks the pack a balance qualifies for: the active pack with
// the greatest usd_value not exceeding the balance, else the cheapest
// active pack. Returns ("", false) when no pack is active at all.
func SelectPack(opts []PackOption, balance int64) (string, bool) {
	bestID, cheapID := "", ""
	var bestVal, cheapVal int64
	for _, p := range opts {
		if !p.Active {
			continue
		}
		if p.USDValue <= balance && (bestID == "" || p.USDValue > bestVal) {
			bestID, bestVal = p.ID, p.USDValue
		}
		if cheapID == "" || p.USDValue < cheapVal {
			cheapID, cheapVal = p.ID, p.USDValue
		}
	}
	if bestID != "" {
		return bestID, true
	}
	if cheapID != "" {
		return cheapID, true
	}
	return "", false
}

// Store persists wallets. All mutating operations are atomic per user and
// return the post-state. Implementations re-run pack auto-assignment after
// any balance change when the wallet has no pack or an inactive one.
type Store interface {
	Get(ctx context.Context, userID string) (*Wallet, error)
	Create(ctx context.Context, userID string) (*Wallet, error)
	Credit(ctx context.Context, userID string, amount int64) (*Wallet, error)
	Debit(ctx context.Context, userID string, amount int64) (*Wallet, error)
	CreditCommission(ctx context.Context, userID string, amount int64) (*Wallet, error)
	DebitCommission(ctx context.Context, userID string, amount int64) (*Wallet, error)
	AddHold(ctx context.Context, userID string, amount int64) (*Wallet, error)
	ReleaseHold(ctx context.Context, userID string) (*Wallet, error)
	Adjust(ctx context.Context, userID string, delta int64) (*Wallet, error)
	SetSalary(ctx context.Context, userID string, salary int64) (*Wallet, error)
	SetCreditScore(ctx context.Context, userID string, score float64) (*Wallet, error)
	SetPack(ctx context.Context, userID, packID string) (*Wallet, error)
	ZeroAllSalaries(ctx context.Context) (int, error)
	ReassignPack(ctx context.Context, packID string) (int, error)
}

// applyCredit runs the sequential credit rule on a (balance, onHold) pair:
// clear any deficit first, then merge the hold back once solvent.
func applyCredit(balance, onHold, amount int64) (int64, int64) {
	balance += amount
	if balance >= 0 && onHold > 0 {
		balance += onHold
		onHold = 0
	}
	return balance, onHold
}

// PreviewCredit returns the balance and hold a credit of amount would
// leave, without persisting anything. Admin previews use this so the
// shown outcome matches what Credit would actually do.
func PreviewCredit(balance, onHold, amount int64) (newBalance, newOnHold int64) {
	return applyCredit(balance, onHold, amount)
}

// applyDebit runs the debit rule: spend from balance when sufficient,
// otherwise go negative by the deficit and reserve the full amount.
func applyDebit(balance, onHold, amount int64) (int64, int64) {
	if balance >= amount {
		return balance - amount, onHold
	}
	return -(amount - balance), amount
}
