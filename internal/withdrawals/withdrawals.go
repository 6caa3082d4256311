// Package withdrawals handles cash-outs: a worker requests an amount to
// an ERC-20 address under their transactional password, and staff
// review the request exactly once. Processing debits the raw amount off
// the balance and can hand the transfer to an on-chain payout sender;
// rejecting moves no money. A reviewed request can never be re-reviewed.
package withdrawals

import (
	"context"
	"errors"
	"time"
)

// Review statuses. Unlike deposits, a withdrawal is single-shot: the
// first review pins it forever.
const (
	StatusPending   = "Pending"
	StatusProcessed = "Processed"
	StatusRejected  = "Rejected"
)

// Errors
var (
	ErrWithdrawalNotFound  = errors.New("withdrawals: not found")
	ErrInvalidAmount       = errors.New("withdrawals: amount must be greater than zero")
	ErrInvalidAddress      = errors.New("withdrawals: invalid wallet address")
	ErrInvalidStatus       = errors.New("withdrawals: invalid status")
	ErrInsufficientBalance = errors.New("withdrawals: balance cannot cover the amount")
	ErrDailyLimit          = errors.New("withdrawals: daily withdrawal limit reached")
	ErrAlreadyReviewed     = errors.New("withdrawals: already reviewed")
	ErrBadAdminPassword    = errors.New("withdrawals: incorrect admin password")
)

// Withdrawal is one cash-out request. Amount is a two-decimal USD
// string; TxHash is set when a payout transaction was dispatched for a
// processed request.
type Withdrawal struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Amount     string    `json:"amount"`
	Address    string    `json:"address"`
	Status     string    `json:"status"`
	IsReviewed bool      `json:"isReviewed"`
	TxHash     string    `json:"txHash,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Filter narrows the admin listing. Before/BeforeID are the cursor
// position (newest first); zero Before means start from the top.
type Filter struct {
	Status   string
	Before   time.Time
	BeforeID string
	Limit    int
}

// Store persists withdrawal requests.
type Store interface {
	Create(ctx context.Context, w *Withdrawal) (*Withdrawal, error)
	Get(ctx context.Context, id string) (*Withdrawal, error)
	// ListByUser returns the worker's own requests, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Withdrawal, error)
	// List returns requests across all workers for review.
	List(ctx context.Context, f Filter) ([]*Withdrawal, error)
	// MarkReviewed sets the final status on an unreviewed request.
	// Returns ErrAlreadyReviewed when the request was reviewed before,
	// so racing reviewers settle on exactly one outcome.
	MarkReviewed(ctx context.Context, id, status string) (*Withdrawal, error)
	SetTxHash(ctx context.Context, id, hash string) error
	// CountSince counts the worker's requests created at or after since.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// ValidStatus reports whether s is a reviewable outcome.
func ValidStatus(s string) bool {
	return s == StatusProcessed || s == StatusRejected
}
