// Package admin is the management surface over worker accounts: the
// user listing with lifetime submission aggregates, the dashboard
// counters, and the account operations that move money or rewrite
// daily progress.
//
// Operations that touch balances, commission, salary, or counters
// require the acting admin to re-enter their own transactional
// password. Profile-level toggles (login password, withdrawal
// password, minimum-balance waiver, active flag) do not. Every
// operation lands in the admin activity log with the actor and a
// description of what changed.
package admin

import (
	"errors"

	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

// ErrBadAdminPassword rejects a gated operation when the acting
// admin's transactional password does not match.
var ErrBadAdminPassword = errors.New("admin: incorrect admin password")

// ValidationError reports a request that failed a business check, with
// the field it concerns and the operator-facing message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// UserSummary is one row of the admin user listing: the account, its
// wallet, and the submission aggregates the listing shows. TotalPlay
// is today's played count; TotalAvailablePlay is the assigned pack's
// daily mission cap (zero when no pack); the submitted totals are
// lifetime counts of played tasks.
type UserSummary struct {
	*users.User
	Wallet                 *wallet.Wallet `json:"wallet"`
	TotalPlay              int            `json:"totalPlay"`
	TotalAvailablePlay     int            `json:"totalAvailablePlay"`
	TotalProductSubmitted  int            `json:"totalProductSubmitted"`
	TotalNegativeSubmitted int            `json:"totalNegativeProductSubmitted"`
}

// Dashboard is the admin landing payload. The month maps key on
// calendar month number; registrations carry all twelve months,
// submissions only January through the current month.
type Dashboard struct {
	TotalUsers           int         `json:"totalUsers"`
	ActiveProducts       int         `json:"activeProducts"`
	TotalSubmissions     int         `json:"totalSubmissions"`
	LoginsToday          LoginsToday `json:"totalUsersLoginToday"`
	RegistrationsByMonth map[int]int `json:"userRegistrationsPerMonth"`
	SubmissionsByMonth   map[int]int `json:"totalSubmissionsPerMonth"`
}

// LoginsToday lists the workers whose last connection falls today,
// newest first.
type LoginsToday struct {
	Count int            `json:"count"`
	Users []*UserSummary `json:"users"`
}

// BalanceCalculation previews what crediting an amount would do to a
// wallet, including deficit clearing and the hold merge, without
// persisting anything.
type BalanceCalculation struct {
	CurrentBalance         string `json:"currentBalance"`
	CurrentOnHold          string `json:"currentOnHold"`
	BalanceAdjustment      string `json:"balanceAdjustment"`
	ResultingBalance       string `json:"resultingBalance"`
	ResultingOnHold        string `json:"resultingOnHold"`
	NegativeBalanceCleared bool   `json:"negativeBalanceCleared"`
	OnHoldMovedToBalance   bool   `json:"onHoldMovedToBalance"`
}

// ProfitCalculation previews setting todayProfit to a target value and
// the commission delta that would ride along.
type ProfitCalculation struct {
	CurrentProfit          string `json:"currentProfit"`
	CurrentCommission      string `json:"currentCommission"`
	ProfitAdjustment       string `json:"profitAdjustment"`
	ProfitDifference       string `json:"profitDifference"`
	ResultingProfit        string `json:"resultingProfit"`
	ResultingCommission    string `json:"resultingCommission"`
	CommissionWillIncrease bool   `json:"commissionWillIncrease"`
	CommissionWillDecrease bool   `json:"commissionWillDecrease"`
}

// SalaryCalculation previews replacing the salary total and the
// balance movement that follows the difference.
type SalaryCalculation struct {
	CurrentSalary       string `json:"currentSalary"`
	CurrentBalance      string `json:"currentBalance"`
	SalaryAdjustment    string `json:"salaryAdjustment"`
	SalaryDifference    string `json:"salaryDifference"`
	ResultingSalary     string `json:"resultingSalary"`
	ResultingBalance    string `json:"resultingBalance"`
	BalanceWillIncrease bool   `json:"balanceWillIncrease"`
	BalanceWillDecrease bool   `json:"balanceWillDecrease"`
}
