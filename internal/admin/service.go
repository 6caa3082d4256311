package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/products"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/tasks"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

// Service composes the domain services behind the admin surface.
type Service struct {
	users    *users.Service
	wallets  *wallet.Service
	packs    *packs.Service
	engine   *tasks.Service
	products *products.Service
	notify   *notify.Service
	settings *settings.Service
	logger   *slog.Logger
}

// NewService wires the admin surface. logger may be nil.
func NewService(us *users.Service, w *wallet.Service, pk *packs.Service, engine *tasks.Service, pr *products.Service, n *notify.Service, st *settings.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    us,
		wallets:  w,
		packs:    pk,
		engine:   engine,
		products: pr,
		notify:   n,
		settings: st,
		logger:   logger,
	}
}

// verifyAdmin checks the acting admin's own transactional password.
// Any failure, including an unknown actor, reads as a bad password so
// the caller learns nothing else.
func (s *Service) verifyAdmin(ctx context.Context, actorID, password string) error {
	if err := s.users.VerifyTransactionalPassword(ctx, actorID, password); err != nil {
		return ErrBadAdminPassword
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID, description, reason, action string) {
	s.notify.Log(ctx, actorID, description, reason)
	AdminActionsTotal.WithLabelValues(action).Inc()
}

func (s *Service) notifyWorker(ctx context.Context, userID, title, message string) {
	if err := s.notify.NotifyUser(ctx, userID, title, message); err != nil {
		s.logger.Warn("user notification failed", "user", userID, "title", title, "error", err)
	}
}

// Summary loads one user decorated with wallet and lifetime counters.
func (s *Service) Summary(ctx context.Context, userID string) (*UserSummary, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, u), nil
}

// GetUser returns one decorated user and records the lookup in the
// admin activity log.
func (s *Service) GetUser(ctx context.Context, actorID, userID string) (*UserSummary, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, fmt.Sprintf("Retrieved user info for %s", sum.Username), "", "get_user")
	return sum, nil
}

// ListUsers pages the worker listing, each row decorated. The filter's
// cursor and limit semantics follow the users store.
func (s *Service) ListUsers(ctx context.Context, f users.Filter) ([]*UserSummary, error) {
	list, err := s.users.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(ctx, list), nil
}

// decorate attaches the wallet and submission aggregates to a user.
// Lookup failures leave the affected fields zero rather than failing
// the whole listing.
func (s *Service) decorate(ctx context.Context, u *users.User) *UserSummary {
	sum := &UserSummary{User: u, TotalPlay: u.SubmissionsToday}
	if w, err := s.wallets.Get(ctx, u.ID); err == nil {
		sum.Wallet = w
		if w.PackID != "" {
			if pack, err := s.packs.Get(ctx, w.PackID); err == nil {
				sum.TotalAvailablePlay = pack.DailyMissions
			}
		}
	}
	if n, err := s.engine.PlayedCount(ctx, u.ID, false); err == nil {
		sum.TotalProductSubmitted = n
	}
	if n, err := s.engine.PlayedCount(ctx, u.ID, true); err == nil {
		sum.TotalNegativeSubmitted = n
	}
	return sum
}

func (s *Service) decorateAll(ctx context.Context, list []*users.User) []*UserSummary {
	out := make([]*UserSummary, 0, len(list))
	for _, u := range list {
		out = append(out, s.decorate(ctx, u))
	}
	return out
}

// Dashboard assembles the landing counters. Day and month boundaries
// follow the configured platform timezone.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	loc := s.settings.Location(ctx)
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)

	totalUsers, err := s.users.CountWorkers(ctx)
	if err != nil {
		return nil, err
	}
	productCount, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	submissions, err := s.engine.SubmissionsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	logins, err := s.users.LoggedInBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	regs, err := s.users.RegistrationsByMonth(ctx, now.Year(), loc)
	if err != nil {
		return nil, err
	}
	subsByMonth, err := s.engine.SubmissionsByMonth(ctx, now.Year(), loc)
	if err != nil {
		return nil, err
	}

	registrations := make(map[int]int, 12)
	for m := 1; m <= 12; m++ {
		registrations[m] = regs[m]
	}
	perMonth := make(map[int]int, int(now.Month()))
	for m := 1; m <= int(now.Month()); m++ {
		perMonth[m] = subsByMonth[m]
	}

	return &Dashboard{
		TotalUsers:       totalUsers,
		ActiveProducts:   productCount,
		TotalSubmissions: submissions,
		LoginsToday: LoginsToday{
			Count: len(logins),
			Users: s.decorateAll(ctx, logins),
		},
		RegistrationsByMonth: registrations,
		SubmissionsByMonth:   perMonth,
	}, nil
}

// SetLoginPassword replaces a worker's login password. Not gated; the
// admin surface itself is already behind staff auth.
func (s *Service) SetLoginPassword(ctx context.Context, actorID, userID, password string) (*UserSummary, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPassword(ctx, u.ID, password); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, fmt.Sprintf("Updated login password for user %s", u.Username), "", "set_login_password")
	return s.Summary(ctx, u.ID)
}

// SetWithdrawalPassword replaces a worker's transactional password.
func (s *Service) SetWithdrawalPassword(ctx context.Context, actorID, userID, password string) (*UserSummary, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetTransactionalPassword(ctx, u.ID, password); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, fmt.Sprintf("Updated transactional password for user %s", u.Username), "", "set_withdrawal_password")
	return s.Summary(ctx, u.ID)
}

// UpdateBalance credits the worker's wallet through the regular credit
// rule, so a deficit is cleared and any hold merges back first.
func (s *Service) UpdateBalance(ctx context.Context, actorID, adminPassword, userID string, amount int64, reason string) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	w, err := s.wallets.Credit(ctx, u.ID, amount)
	if err != nil {
		return nil, err
	}
	s.notifyWorker(ctx, u.ID, "Admin Update User",
		fmt.Sprintf("Your Balance had been Updated with %s USD, New Balance %s USD", money.Format(amount), w.Balance))
	s.record(ctx, actorID,
		fmt.Sprintf("Adjusted balance for user %s by %s USD. Reason: %s", u.Username, money.Format(amount), reason),
		reason, "update_balance")
	return s.Summary(ctx, u.ID)
}

// CalculateBalance previews UpdateBalance without persisting.
func (s *Service) CalculateBalance(ctx context.Context, userID string, adjustment int64) (*BalanceCalculation, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	bal, _ := money.Parse(w.Balance)
	hold, _ := money.Parse(w.OnHold)
	newBal, newHold := wallet.PreviewCredit(bal, hold, adjustment)
	return &BalanceCalculation{
		CurrentBalance:         w.Balance,
		CurrentOnHold:          w.OnHold,
		BalanceAdjustment:      money.Format(adjustment),
		ResultingBalance:       money.Format(newBal),
		ResultingOnHold:        money.Format(newHold),
		NegativeBalanceCleared: bal < 0 && newBal >= 0,
		OnHoldMovedToBalance:   hold > 0 && newHold == 0 && newBal >= 0,
	}, nil
}

// UpdateProfit sets todayProfit to a target value and moves the
// commission total by the difference.
func (s *Service) UpdateProfit(ctx context.Context, actorID, adminPassword, userID string, target int64, reason string) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	old, _ := money.Parse(u.TodayProfit)
	diff := target - old
	if err := s.users.SetTodayProfit(ctx, u.ID, target); err != nil {
		return nil, err
	}
	switch {
	case diff > 0:
		if _, err := s.wallets.CreditCommission(ctx, u.ID, diff); err != nil {
			return nil, err
		}
	case diff < 0:
		if _, err := s.wallets.DebitCommission(ctx, u.ID, -diff); err != nil {
			return nil, err
		}
	}
	s.record(ctx, actorID,
		fmt.Sprintf("Updated today_profit for user %s to %s USD. Reason: %s", u.Username, money.Format(target), reason),
		reason, "update_profit")
	return s.Summary(ctx, u.ID)
}

// CalculateProfit previews UpdateProfit without persisting.
func (s *Service) CalculateProfit(ctx context.Context, userID string, target int64) (*ProfitCalculation, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cur, _ := money.Parse(u.TodayProfit)
	com, _ := money.Parse(w.Commission)
	diff := target - cur
	return &ProfitCalculation{
		CurrentProfit:          u.TodayProfit,
		CurrentCommission:      w.Commission,
		ProfitAdjustment:       money.Format(target),
		ProfitDifference:       money.Format(diff),
		ResultingProfit:        money.Format(target),
		ResultingCommission:    money.Format(com + diff),
		CommissionWillIncrease: diff > 0,
		CommissionWillDecrease: diff < 0,
	}, nil
}

// UpdateSalary replaces the salary total. The wallet applies the
// difference to the balance: a raise goes through the credit rule, a
// cut comes straight off the balance.
func (s *Service) UpdateSalary(ctx context.Context, actorID, adminPassword, userID string, target int64, reason string) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	before, err := s.wallets.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	oldSalary, _ := money.Parse(before.Salary)
	diff := target - oldSalary
	w, err := s.wallets.SetSalary(ctx, u.ID, target)
	if err != nil {
		return nil, err
	}
	s.notifyWorker(ctx, u.ID, "Admin Update User",
		fmt.Sprintf("Your Salary has been Updated with %s USD, New Balance %s USD", money.Format(diff), w.Balance))
	s.record(ctx, actorID,
		fmt.Sprintf("Updated salary for user %s to %s USD. Reason: %s", u.Username, money.Format(target), reason),
		reason, "update_salary")
	return s.Summary(ctx, u.ID)
}

// CalculateSalary previews UpdateSalary without persisting. The
// preview applies the difference to the balance directly; it does not
// model the hold merge a real raise can trigger.
func (s *Service) CalculateSalary(ctx context.Context, userID string, target int64) (*SalaryCalculation, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cur, _ := money.Parse(w.Salary)
	bal, _ := money.Parse(w.Balance)
	diff := target - cur
	return &SalaryCalculation{
		CurrentSalary:       w.Salary,
		CurrentBalance:      w.Balance,
		SalaryAdjustment:    money.Format(target),
		SalaryDifference:    money.Format(diff),
		ResultingSalary:     money.Format(target),
		ResultingBalance:    money.Format(bal + diff),
		BalanceWillIncrease: diff > 0,
		BalanceWillDecrease: diff < 0,
	}, nil
}

// ToggleRegBonus adds or removes the registration bonus. Adding goes
// through the credit rule; removing comes straight off the balance,
// even into deficit. The amount is the platform-wide setting.
func (s *Service) ToggleRegBonus(ctx context.Context, actorID, adminPassword, userID string) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	amount, err := s.settings.RegistrationBonus(ctx)
	if err != nil {
		return nil, err
	}
	if u.RegBonusAdded {
		if amount > 0 {
			if _, err := s.wallets.Adjust(ctx, u.ID, -amount); err != nil {
				return nil, err
			}
		}
		u.RegBonusAdded = false
	} else {
		if amount > 0 {
			if _, err := s.wallets.Credit(ctx, u.ID, amount); err != nil {
				return nil, err
			}
		}
		u.RegBonusAdded = true
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	state := "Disabled"
	if u.RegBonusAdded {
		state = "Enabled"
	}
	s.record(ctx, actorID, fmt.Sprintf("%s registration bonus for user %s", state, u.Username), "", "toggle_reg_bonus")
	return s.Summary(ctx, u.ID)
}

// ToggleMinBalance flips the per-user waiver of the minimum-balance
// requirement for submissions. Not gated.
func (s *Service) ToggleMinBalance(ctx context.Context, actorID, userID string) (*UserSummary, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.MinBalanceWaived = !u.MinBalanceWaived
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	msg := "Minimum Balanace for submission Has been Disabled"
	state := "Enabled"
	if u.MinBalanceWaived {
		msg = "Minimum Balanace for submission Has been Enabled"
		state = "Disabled"
	}
	s.notifyWorker(ctx, u.ID, "Admin Update", msg)
	s.record(ctx, actorID, fmt.Sprintf("%s minimum-balance requirement for user %s", state, u.Username), "", "toggle_min_balance")
	return s.Summary(ctx, u.ID)
}

// ToggleActive flips the account's active flag. Not gated.
func (s *Service) ToggleActive(ctx context.Context, actorID, userID string) (*UserSummary, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Active = !u.Active
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	state := "Deactivated"
	if u.Active {
		state = "Activated"
	}
	s.record(ctx, actorID, fmt.Sprintf("%s user %s", state, u.Username), "", "toggle_active")
	return s.Summary(ctx, u.ID)
}

// ResetAccount rewrites the worker's daily counters. Explicit counts
// are bounded by the assigned pack's limits; omitted counts fall back
// to the defaults: submissions go to zero, sets go to zero only once
// the worker has completed the pack's full set quota.
func (s *Service) ResetAccount(ctx context.Context, actorID, adminPassword, userID string, submissionCount, setCount *int) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	w, err := s.wallets.Get(ctx, u.ID)
	if err != nil || w.PackID == "" {
		return nil, &ValidationError{Field: "user", Reason: "User does not have a valid package assigned."}
	}
	pack, err := s.packs.Get(ctx, w.PackID)
	if err != nil {
		return nil, &ValidationError{Field: "user", Reason: "User does not have a valid package assigned."}
	}

	if submissionCount != nil && (*submissionCount < 0 || *submissionCount > pack.DailyMissions) {
		return nil, &ValidationError{
			Field:  "submissionCount",
			Reason: fmt.Sprintf("Submission count cannot exceed package daily missions limit (%d)", pack.DailyMissions),
		}
	}
	if setCount != nil && (*setCount < 0 || *setCount > pack.NumberOfSets) {
		return nil, &ValidationError{
			Field:  "setCount",
			Reason: fmt.Sprintf("Set count cannot exceed package number of sets limit (%d)", pack.NumberOfSets),
		}
	}

	subs := 0
	if submissionCount != nil {
		subs = *submissionCount
	}
	sets := u.SetsToday
	if setCount != nil {
		sets = *setCount
	} else if u.SetsToday >= pack.NumberOfSets {
		sets = 0
	}
	if err := s.users.SetDailyCounters(ctx, u.ID, subs, sets); err != nil {
		return nil, err
	}

	s.notifyWorker(ctx, u.ID, "Account Reset", "Your account has been successfully reset, Proceed to make your submissions")
	s.record(ctx, actorID, fmt.Sprintf("Reset account counters for user %s", u.Username), "", "reset_account")
	return s.Summary(ctx, u.ID)
}

// SetCreditScore sets the wallet's 0-100 display score.
func (s *Service) SetCreditScore(ctx context.Context, actorID, adminPassword, userID string, score float64) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wallets.SetCreditScore(ctx, u.ID, score); err != nil {
		return nil, err
	}
	s.notifyWorker(ctx, u.ID, "Admin Update User", fmt.Sprintf("Your Credit score has been updated to %.2f%%", score))
	s.record(ctx, actorID, fmt.Sprintf("Updated credit score for user %s to %.2f%%", u.Username, score), "", "set_credit_score")
	return s.Summary(ctx, u.ID)
}

// SetPack pins the worker's wallet to a pack. The pack must exist and
// be active.
func (s *Service) SetPack(ctx context.Context, actorID, adminPassword, userID, packID string) (*UserSummary, error) {
	if err := s.verifyAdmin(ctx, actorID, adminPassword); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	pack, err := s.packs.Get(ctx, packID)
	if errors.Is(err, packs.ErrPackNotFound) {
		return nil, &ValidationError{Field: "packId", Reason: "Selected pack does not exist."}
	}
	if err != nil {
		return nil, err
	}
	if !pack.Active {
		return nil, &ValidationError{Field: "packId", Reason: "Selected pack is inactive. Please choose an active pack."}
	}
	if _, err := s.wallets.SetPack(ctx, u.ID, pack.ID); err != nil {
		return nil, err
	}
	s.notifyWorker(ctx, u.ID, "Package Updated", fmt.Sprintf("Your membership pack has been set to %s.", pack.Name))
	s.record(ctx, actorID, fmt.Sprintf("Manually set pack for user %s to %s", u.Username, pack.Name), "", "set_pack")
	return s.Summary(ctx, u.ID)
}

// MintInvitationCode generates a single-use signup code.
func (s *Service) MintInvitationCode(ctx context.Context, actorID string) (*users.InvitationCode, error) {
	code, err := s.users.MintInvitationCode(ctx, actorID)
	if err != nil {
		return nil, err
	}
	AdminActionsTotal.WithLabelValues("mint_invitation_code").Inc()
	return code, nil
}

// ListInvitationCodes returns every minted code, newest first.
func (s *Service) ListInvitationCodes(ctx context.Context) ([]*users.InvitationCode, error) {
	return s.users.ListInvitationCodes(ctx)
}
