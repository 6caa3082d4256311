// Package deposits handles balance top-ups: workers submit a deposit
// request (bank/crypto transfer reference, or a hosted card checkout),
// and staff review it. Confirming a deposit credits the wallet through
// the same deficit-clearing path as any other credit; pulling a
// confirmation back subtracts the raw amount again.
package deposits

import (
	"context"
	"errors"
	"time"
)

// Review statuses. A deposit starts Pending and can be moved between
// the three states any number of times; wallet effects key off the
// Confirmed edge in either direction.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusRejected  = "Rejected"
)

// Submission methods.
const (
	MethodTransfer = "transfer"
	MethodCard     = "card"
)

// Errors
var (
	ErrDepositNotFound  = errors.New("deposits: not found")
	ErrInvalidAmount    = errors.New("deposits: amount must be greater than zero")
	ErrInvalidStatus    = errors.New("deposits: invalid status")
	ErrBadAdminPassword = errors.New("deposits: incorrect admin password")
	ErrCardUnavailable  = errors.New("deposits: card payments are not configured")
)

// Deposit is one top-up request. Amount is a two-decimal USD string.
// Reference carries whatever the worker supplied to identify the
// transfer; for card submissions SessionID holds the checkout session
// so support can match the payment later.
type Deposit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filter narrows the admin listing. Before/BeforeID are the cursor
// position (newest first); zero Before means start from the top.
type Filter struct {
	Status   string
	Before   time.Time
	BeforeID string
	Limit    int
}

// Store persists deposit requests.
type Store interface {
	Create(ctx context.Context, d *Deposit) (*Deposit, error)
	Get(ctx context.Context, id string) (*Deposit, error)
	// ListByUser returns the worker's own requests, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Deposit, error)
	// List returns requests across all workers for review.
	List(ctx context.Context, f Filter) ([]*Deposit, error)
	UpdateStatus(ctx context.Context, id, status string) (*Deposit, error)
	SetSession(ctx context.Context, id, sessionID string) error
}

// ValidStatus reports whether s is one of the three review states.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRejected
}
