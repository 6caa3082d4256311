package withdrawals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/validation"
	"github.com/mbd888/trackrate/internal/wallet"
)

// Payout dispatches a processed withdrawal on-chain. Implementations
// send amountCents worth of stablecoin to toAddress and return the
// transaction hash; reference carries the withdrawal id for tracing.
type Payout interface {
	Send(ctx context.Context, toAddress string, amountCents int64, reference string) (string, error)
}

// Service owns the withdrawal lifecycle. payout is optional; without it
// processed withdrawals settle the ledger only and staff move funds by
// hand.
type Service struct {
	store    Store
	wallets  *wallet.Service
	users    *users.Service
	packs    *packs.Service
	settings *settings.Service
	notify   *notify.Service
	payout   Payout
	logger   *slog.Logger
}

func NewService(store Store, w *wallet.Service, us *users.Service, p *packs.Service, st *settings.Service, n *notify.Service, payout Payout, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		wallets:  w,
		users:    us,
		packs:    p,
		settings: st,
		notify:   n,
		payout:   payout,
		logger:   logger,
	}
}

// Request opens a Pending withdrawal for the worker. The transactional
// password authorizes the request; the amount must fit inside the
// current balance and the pack's daily withdrawal allowance. No money
// moves until staff process the request.
func (s *Service) Request(ctx context.Context, userID, txnPassword string, amount int64, address string) (*Withdrawal, error) {
	if err := s.users.VerifyTransactionalPassword(ctx, userID, txnPassword); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validation.IsValidEthAddress(address) {
		return nil, ErrInvalidAddress
	}

	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, _ := money.Parse(w.Balance)
	if balance < amount {
		return nil, ErrInsufficientBalance
	}
	if err := s.checkDailyLimit(ctx, userID, w.PackID); err != nil {
		return nil, err
	}

	wd, err := s.store.Create(ctx, &Withdrawal{
		UserID:  userID,
		Amount:  money.Format(amount),
		Address: address,
		Status:  StatusPending,
	})
	if err != nil {
		return nil, err
	}

	s.notifyWorker(ctx, userID, fmt.Sprintf("Your withdrawal request of %s USD is pending.", wd.Amount))
	RequestedTotal.Inc()
	return wd, nil
}

// checkDailyLimit counts requests since local midnight against the
// pack's DailyWithdrawals. Workers without a pack are not limited.
func (s *Service) checkDailyLimit(ctx context.Context, userID, packID string) error {
	if packID == "" {
		return nil
	}
	pack, err := s.packs.Get(ctx, packID)
	if err != nil {
		return nil
	}
	if pack.DailyWithdrawals <= 0 {
		return nil
	}
	local := time.Now().In(s.settings.Location(ctx))
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	n, err := s.store.CountSince(ctx, userID, midnight)
	if err != nil {
		return err
	}
	if n >= pack.DailyWithdrawals {
		return ErrDailyLimit
	}
	return nil
}

// Mine returns the worker's own requests, newest first.
func (s *Service) Mine(ctx context.Context, userID string, limit int) ([]*Withdrawal, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// Get returns one withdrawal regardless of owner. Admin listing detail.
func (s *Service) Get(ctx context.Context, id string) (*Withdrawal, error) {
	return s.store.Get(ctx, id)
}

// List returns withdrawals across all workers for review.
func (s *Service) List(ctx context.Context, f Filter) ([]*Withdrawal, error) {
	return s.store.List(ctx, f)
}

// Review settles a pending withdrawal exactly once. Processed subtracts
// the amount straight off the balance and hands the transfer to the
// payout sender when one is wired; Rejected leaves the wallet alone.
// A second review of the same request fails with ErrAlreadyReviewed.
// The acting admin authorizes with their own transactional password.
func (s *Service) Review(ctx context.Context, actorID, adminPassword, id, newStatus string) (*Withdrawal, error) {
	if err := s.users.VerifyTransactionalPassword(ctx, actorID, adminPassword); err != nil {
		return nil, ErrBadAdminPassword
	}
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, newStatus)
	}

	wd, err := s.store.MarkReviewed(ctx, id, newStatus)
	if err != nil {
		return nil, err
	}

	amount, _ := money.Parse(wd.Amount)
	switch newStatus {
	case StatusProcessed:
		w, err := s.wallets.Adjust(ctx, wd.UserID, -amount)
		if err != nil {
			return nil, fmt.Errorf("failed to debit processed withdrawal: %w", err)
		}
		s.dispatchPayout(ctx, wd, amount)
		s.notifyWorker(ctx, wd.UserID,
			fmt.Sprintf("Your withdrawal request of %s USD has been processed successfully. Your current balance is now %s USD.", wd.Amount, w.Balance))
	case StatusRejected:
		balance := "0.00"
		if w, err := s.wallets.Get(ctx, wd.UserID); err == nil {
			balance = w.Balance
		}
		s.notifyWorker(ctx, wd.UserID,
			fmt.Sprintf("Your withdrawal request of %s USD has been rejected. Your current balance is now %s USD.", wd.Amount, balance))
	}

	s.auditReview(ctx, actorID, wd)
	ReviewsTotal.WithLabelValues(newStatus).Inc()
	return wd, nil
}

// dispatchPayout is best effort: a sender failure leaves the withdrawal
// Processed with no hash, and staff settle the transfer out of band.
func (s *Service) dispatchPayout(ctx context.Context, wd *Withdrawal, amount int64) {
	if s.payout == nil {
		return
	}
	hash, err := s.payout.Send(ctx, wd.Address, amount, wd.ID)
	if err != nil {
		s.logger.Warn("payout dispatch failed", "withdrawal", wd.ID, "address", wd.Address, "error", err)
		return
	}
	if err := s.store.SetTxHash(ctx, wd.ID, hash); err != nil {
		s.logger.Warn("failed to record payout hash", "withdrawal", wd.ID, "error", err)
		return
	}
	wd.TxHash = hash
}

func (s *Service) notifyWorker(ctx context.Context, userID, message string) {
	if err := s.notify.NotifyUser(ctx, userID, "Withdrawal Status Update", message); err != nil {
		s.logger.Warn("user notification failed", "user", userID, "error", err)
	}
}

func (s *Service) auditReview(ctx context.Context, actorID string, wd *Withdrawal) {
	username := wd.UserID
	if u, err := s.users.Get(ctx, wd.UserID); err == nil {
		username = u.Username
	}
	s.notify.Log(ctx, actorID,
		fmt.Sprintf("Updated withdrawal #%s for user %s to status '%s'. Amount: %s USD", wd.ID, username, wd.Status, wd.Amount), "")
}
