// Package tasks is the assignment and play engine at the heart of the
// platform.
//
// A task is one paid album review. The engine decides which task a worker
// sees next by walking a fixed priority order: a reserved special task, a
// special task anchored at the worker's next rank of the day, a reserved
// regular task, the oldest unplayed regular task, and finally a fresh
// assignment picked from the catalog by price band. Special tasks reserve
// their amount on first presentation, driving the wallet negative with the
// amount on hold until a sufficient deposit clears it.
//
// Rank is the ordinal of the day's next submission: a worker who has
// submitted n reviews today is at rank n+1. Several special tasks may share
// a rank; playing one does not advance the rank until the queue at that
// rank is drained.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/trackrate/internal/money"
)

// Errors
var (
	ErrTaskNotFound        = errors.New("tasks: not found")
	ErrInvalidRating       = errors.New("tasks: rating score must be between 1 and 5")
	ErrInvalidProductCount = errors.New("tasks: number of negative products must be between 0 and 3")
	ErrInvalidRank         = errors.New("tasks: rank appearance must not be negative")
	ErrTaskNotEditable     = errors.New("tasks: task already presented or played")
	ErrSpecialPending      = errors.New("tasks: user already has a reserved special task")
)

// MaxSpecialProducts bounds how many albums a special task may bundle.
const MaxSpecialProducts = 3

// Eligibility codes surfaced alongside the human-readable reason.
const (
	EligNegativeBalance  = "negative_balance"
	EligMinimumBalance   = "minimum_balance"
	EligSetCompleted     = "set_completed"
	EligAllSetsCompleted = "all_sets_completed"
	EligDailyCap         = "daily_cap"
	EligNoAlbums         = "no_albums"
)

// EligibilityError explains why a worker cannot play right now. Code is a
// stable machine tag; Reason is the sentence shown to the worker.
type EligibilityError struct {
	Code   string
	Reason string
}

func (e *EligibilityError) Error() string { return e.Reason }

// HoldRangeError reports that no album combination lands inside the
// requested hold band for the worker's current balance.
type HoldRangeError struct {
	Min     string
	Max     string
	Balance string
}

func (e *HoldRangeError) Error() string {
	return fmt.Sprintf("No albums match the on-hold range (%s to %s) for the user balance with %s", e.Min, e.Max, e.Balance)
}

// Task is one review assignment. Amount and Commission are two-decimal USD
// strings. GameNumber anchors special tasks to a rank of the day and stays
// zero for regular tasks. Pending marks a task that has been presented to
// the worker (and, for specials, had its amount reserved).
type Task struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	ProductIDs           []string  `json:"productIds"`
	Amount               string    `json:"amount"`
	Commission           string    `json:"commission"`
	CommissionPercentage float64   `json:"commissionPercentage"`
	RatingNo             string    `json:"ratingNo"`
	GameNumber           int       `json:"gameNumber"`
	Special              bool      `json:"specialProduct"`
	Played               bool      `json:"played"`
	Pending              bool      `json:"pending"`
	Active               bool      `json:"isActive"`
	HoldBandID           string    `json:"holdBandId,omitempty"`
	RatingScore          int       `json:"ratingScore,omitempty"`
	Comment              string    `json:"comment,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// AmountCents returns the task amount in integer cents.
func (t *Task) AmountCents() int64 {
	cents, _ := money.Parse(t.Amount)
	return cents
}

// CommissionCents returns the commission in integer cents.
func (t *Task) CommissionCents() int64 {
	cents, _ := money.Parse(t.Commission)
	return cents
}

// Store persists tasks and their album links. Selection queries return
// ErrTaskNotFound when no row qualifies. Create assigns the task id and
// CreatedAt; Update rewrites the row and, when ProductIDs is non-empty,
// the album links.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, t *Task) (*Task, error)
	Delete(ctx context.Context, id string) error

	// PendingSpecial returns the worker's oldest reserved unplayed special.
	PendingSpecial(ctx context.Context, userID string) (*Task, error)
	// SpecialAtRank returns the oldest unplayed special anchored at rank.
	SpecialAtRank(ctx context.Context, userID string, rank int) (*Task, error)
	// PendingRegular returns the worker's oldest reserved unplayed regular.
	PendingRegular(ctx context.Context, userID string) (*Task, error)
	// OldestUnplayedRegular returns the worker's oldest unplayed regular,
	// reserved or not.
	OldestUnplayedRegular(ctx context.Context, userID string) (*Task, error)

	// UnplayedSpecialsAtRank counts the worker's remaining unplayed special
	// tasks anchored at rank, excluding excludeID.
	UnplayedSpecialsAtRank(ctx context.Context, userID string, rank int, excludeID string) (int, error)

	// SeenProductIDs lists album ids referenced by the worker's active tasks
	// created in [since, until).
	SeenProductIDs(ctx context.Context, userID string, since, until time.Time) ([]string, error)

	// History pages the worker's tasks newest first using limit+1 keyset
	// semantics on (created_at, id).
	History(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Task, error)

	// ListSpecials returns every special task, newest first.
	ListSpecials(ctx context.Context) ([]*Task, error)

	// UserIDsWithPendingSpecials lists workers holding a reserved unplayed
	// special task. The daily reset preserves their submission counter.
	UserIDsWithPendingSpecials(ctx context.Context) ([]string, error)

	// CountPlayed counts the worker's played active tasks over all time,
	// optionally restricted to specials.
	CountPlayed(ctx context.Context, userID string, specialOnly bool) (int, error)

	// CountSubmissionsBetween counts active played-or-pending tasks,
	// across all workers, whose last update falls in [since, until).
	CountSubmissionsBetween(ctx context.Context, since, until time.Time) (int, error)

	// SubmissionsByMonth buckets active played-or-pending tasks by the
	// month of their last update rendered in loc, for the given year.
	// Months without submissions are absent from the result.
	SubmissionsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error)

	RatingNoExists(ctx context.Context, ratingNo string) (bool, error)
}
