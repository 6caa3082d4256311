// Package api implements the trackrate wire types and a typed client
// for the platform's HTTP surface. It is the foundation for tooling
// that drives the admin API from outside the process, such as cmd/mcp.
package api

import (
	"fmt"
	"time"
)

// Error is the JSON error envelope every trackrate endpoint returns on
// failure. StatusCode is filled in by the client from the HTTP response.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// TokenPair is what the login endpoints hand back.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User mirrors the account fields the server serializes. Money fields
// are two-decimal USD strings.
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

	IsStaff bool `json:"isStaff"`
	Active  bool `json:"active"`

	SubmissionsToday int    `json:"submissionsToday"`
	SetsToday        int    `json:"setsToday"`
	TodayProfit      string `json:"todayProfit"`
	ReferralBonus    string `json:"referralBonus"`

	MinBalanceWaived bool `json:"minBalanceWaived"`
	RegBonusAdded    bool `json:"regBonusAdded"`

	LastConnection time.Time `json:"lastConnection,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Wallet is an account's money state.
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

// UserSummary is one row of the admin user listing: the account with
// its wallet and submission aggregates flattened alongside.
type UserSummary struct {
	User
	Wallet                 *Wallet `json:"wallet"`
	TotalPlay              int     `json:"totalPlay"`
	TotalAvailablePlay     int     `json:"totalAvailablePlay"`
	TotalProductSubmitted  int     `json:"totalProductSubmitted"`
	TotalNegativeSubmitted int     `json:"totalNegativeProductSubmitted"`
}

// Dashboard is the admin landing payload. The month maps key on
// calendar month number.
type Dashboard struct {
	TotalUsers           int         `json:"totalUsers"`
	ActiveProducts       int         `json:"activeProducts"`
	TotalSubmissions     int         `json:"totalSubmissions"`
	LoginsToday          LoginsToday `json:"totalUsersLoginToday"`
	RegistrationsByMonth map[int]int `json:"userRegistrationsPerMonth"`
	SubmissionsByMonth   map[int]int `json:"totalSubmissionsPerMonth"`
}

// LoginsToday lists the accounts that connected since local midnight.
type LoginsToday struct {
	Count int            `json:"count"`
	Users []*UserSummary `json:"users"`
}

// Deposit is a top-up request and its review state.
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

// Withdrawal is a cash-out request and its review state.
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

// AdminLog is one audit trail entry.
type AdminLog struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actorId,omitempty"`
	Description string    `json:"description"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// InvitationCode is a single-use signup code.
type InvitationCode struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Used      bool      `json:"used"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings is the platform configuration record.
type Settings struct {
	PercentageOfSponsors         float64   `json:"percentageOfSponsors"`
	BonusWhenRegistering         string    `json:"bonusWhenRegistering"`
	MinimumBalanceForSubmissions string    `json:"minimumBalanceForSubmissions"`
	TokenValidityPeriodHours     int       `json:"tokenValidityPeriodHours"`
	ServiceAvailabilityStartTime string    `json:"serviceAvailabilityStartTime"`
	ServiceAvailabilityEndTime   string    `json:"serviceAvailabilityEndTime"`
	Timezone                     string    `json:"timezone"`
	WhatsappContact              string    `json:"whatsappContact"`
	TelegramContact              string    `json:"telegramContact"`
	TelegramUsername             string    `json:"telegramUsername"`
	OnlineChatURL                string    `json:"onlineChatUrl"`
	ERCAddress                   string    `json:"ercAddress"`
	TRCAddress                   string    `json:"trcAddress"`
	VideoURL                     string    `json:"video"`
	UpdatedAt                    time.Time `json:"updatedAt"`
}

// UsersPage is one cursor page of the admin user listing.
type UsersPage struct {
	Users      []*UserSummary `json:"users"`
	NextCursor string         `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// DepositsPage is one cursor page of the admin deposit listing.
type DepositsPage struct {
	Deposits   []*Deposit `json:"deposits"`
	NextCursor string     `json:"nextCursor"`
	HasMore    bool       `json:"hasMore"`
}

// WithdrawalsPage is one cursor page of the admin withdrawal listing.
type WithdrawalsPage struct {
	Withdrawals []*Withdrawal `json:"withdrawals"`
	NextCursor  string        `json:"nextCursor"`
	HasMore     bool          `json:"hasMore"`
}

// LogsPage is one cursor page of the audit trail.
type LogsPage struct {
	Logs       []*AdminLog `json:"logs"`
	Count      int         `json:"count"`
	NextCursor string      `json:"nextCursor"`
	HasMore    bool        `json:"hasMore"`
}
