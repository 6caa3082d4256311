// Package users manages worker accounts: signup with invitation codes,
// credential checks, per-surface sessions, and the daily submission
// counters the review engine advances.
//
// Counter semantics: submissionsToday is the single source of truth for
// how far a worker has progressed through the current day. The engine
// derives the daily cap, the special-task rank, and set completion from
// it; the daily reset zeroes it except for workers parked on an unplayed
// special task, who resume at the same rank the next day.
//
// Money-like fields (todayProfit, referralBonus) follow the wallet
// convention: cents internally, two-decimal strings at the boundary.
package users

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrUserNotFound               = errors.New("user not found")
	ErrUsernameTaken              = errors.New("username already taken")
	ErrEmailTaken                 = errors.New("email already registered")
	ErrPhoneTaken                 = errors.New("phone number already registered")
	ErrInvalidCredentials         = errors.New("invalid username or password")
	ErrAccountInactive            = errors.New("account is inactive")
	ErrNotStaff                   = errors.New("access restricted to admin users")
	ErrWrongPassword              = errors.New("current password is incorrect")
	ErrWrongTransactionalPassword = errors.New("transactional password is incorrect")
	ErrInvalidInvitation          = errors.New("invalid invitation code")
	ErrInvitationUsed             = errors.New("invitation code already used")
	ErrInvitationNotFound         = errors.New("invitation not found")
)

// Surfaces a session can be bound to. A login on one surface rotates
// that surface's session id only; tokens for the other surface stay
// valid.
const (
	SurfaceUser  = "user"
	SurfaceAdmin = "admin"
)

// User is a worker (or staff) account.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Gender         string `json:"gender,omitempty"`
	ReferralCode   string `json:"referralCode"`
	ProfilePicture string `json:"profilePicture,omitempty"`

	PasswordHash              string `json:"-"`
	TransactionalPasswordHash string `json:"-"`

	IsStaff bool `json:"isStaff"`
	Active  bool `json:"active"`

	SubmissionsToday int    `json:"submissionsToday"`
	SetsToday        int    `json:"setsToday"`
	TodayProfit      string `json:"todayProfit"`
	ReferralBonus    string `json:"referralBonus"`

	// MinBalanceWaived exempts the user from the minimum-balance
	// eligibility check. RegBonusAdded records whether the one-time
	// registration bonus is currently applied to the wallet.
	MinBalanceWaived bool `json:"minBalanceWaived"`
	RegBonusAdded    bool `json:"regBonusAdded"`

	SessionIDUser  string `json:"-"`
	SessionIDAdmin string `json:"-"`

	LastConnection time.Time `json:"lastConnection,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SessionID returns the stored session id for a surface.
func (u *User) SessionID(surface string) string {
	if surface == SurfaceAdmin {
		return u.SessionIDAdmin
	}
	return u.SessionIDUser
}

// Invitation links a referrer to a user who signed up with their
// referral code. BonusPaid marks the one-time deposit bonus as settled.
type Invitation struct {
	ID         string    `json:"id"`
	ReferrerID string    `json:"referrerId"`
	RefereeID  string    `json:"refereeId"`
	BonusPaid  bool      `json:"bonusPaid"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InvitationCode is a single-use signup code minted by an admin for
// users who have no referrer.
type InvitationCode struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Used      bool      `json:"used"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows admin user listings. Before/BeforeID are the cursor
// position (newest first); zero Before means start from the top.
type Filter struct {
	Search   string
	Active   *bool
	Staff    *bool
	Before   time.Time
	BeforeID string
	Limit    int
}

// Store persists users, invitations, and invitation codes.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, handle string) (*User, error)
	GetByReferralCode(ctx context.Context, code string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, f Filter) ([]*User, error)

	// Counter operations. These are single-statement updates so
	// concurrent engine calls for the same user serialize on the row.
	IncrementSubmissions(ctx context.Context, id string) (int, error)
	IncrementSets(ctx context.Context, id string) (int, error)
	AddTodayProfit(ctx context.Context, id string, cents int64) error
	SetTodayProfit(ctx context.Context, id string, cents int64) error
	SetDailyCounters(ctx context.Context, id string, submissions, sets int) error
	AdjustReferralBonus(ctx context.Context, id string, delta int64) (int64, error)

	// ResetDaily zeroes submissionsToday, todayProfit, and setsToday
	// for every user except those in preserve, who only get setsToday
	// zeroed. Returns the number of users touched.
	ResetDaily(ctx context.Context, preserve []string) (int, error)

	SetSession(ctx context.Context, id, surface, sessionID string) error
	TouchLastConnection(ctx context.Context, id string) error

	// Dashboard aggregates. CountWorkers ignores staff accounts;
	// LoggedInBetween orders by lastConnection, newest first;
	// RegistrationsByMonth buckets non-staff signups by the month of
	// createdAt rendered in loc, returning only months with signups.
	CountWorkers(ctx context.Context) (int, error)
	LoggedInBetween(ctx context.Context, since, until time.Time) ([]*User, error)
	RegistrationsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error)

	CreateInvitation(ctx context.Context, inv *Invitation) error
	InvitationByReferee(ctx context.Context, refereeID string) (*Invitation, error)
	InvitationsByReferrer(ctx context.Context, referrerID string) ([]*Invitation, error)
	MarkInvitationBonusPaid(ctx context.Context, id string) error

	CreateInvitationCode(ctx context.Context, code *InvitationCode) error
	GetInvitationCode(ctx context.Context, code string) (*InvitationCode, error)
	ConsumeInvitationCode(ctx context.Context, id string) error
	ListInvitationCodes(ctx context.Context) ([]*InvitationCode, error)
}
