package deposits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

// Service owns the deposit lifecycle. checkout is optional; without it
// card submissions are refused and transfer submissions still work.
type Service struct {
	store    Store
	wallets  *wallet.Service
	users    *users.Service
	notify   *notify.Service
	checkout CheckoutProvider
	logger   *slog.Logger
}

func NewService(store Store, w *wallet.Service, us *users.Service, n *notify.Service, checkout CheckoutProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		wallets:  w,
		users:    us,
		notify:   n,
		checkout: checkout,
		logger:   logger,
	}
}

// Submit records a new Pending deposit for the worker. For card
// submissions it also opens a checkout session and stores its id on the
// deposit; the session is returned so the handler can hand the worker
// the payment URL.
func (s *Service) Submit(ctx context.Context, userID string, amount int64, method, reference string) (*Deposit, *CheckoutSession, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if method == "" {
		method = MethodTransfer
	}
	if method == MethodCard && s.checkout == nil {
		return nil, nil, ErrCardUnavailable
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, nil, err
	}

	d, err := s.store.Create(ctx, &Deposit{
		UserID:    userID,
		Amount:    money.Format(amount),
		Method:    method,
		Reference: reference,
		Status:    StatusPending,
	})
	if err != nil {
		return nil, nil, err
	}

	var sess *CheckoutSession
	if method == MethodCard {
		sess, err = s.checkout.CreateSession(ctx, CheckoutParams{
			DepositID: d.ID,
			UserID:    userID,
			Amount:    amount,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open card checkout: %w", err)
		}
		if err := s.store.SetSession(ctx, d.ID, sess.ID); err != nil {
			return nil, nil, err
		}
		d.SessionID = sess.ID
	}

	SubmittedTotal.WithLabelValues(method).Inc()
	return d, sess, nil
}

// Mine returns the worker's own requests, newest first.
func (s *Service) Mine(ctx context.Context, userID string, limit int) ([]*Deposit, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// Get returns one deposit regardless of owner. Admin listing detail.
func (s *Service) Get(ctx context.Context, id string) (*Deposit, error) {
	return s.store.Get(ctx, id)
}

// List returns deposits across all workers for review.
func (s *Service) List(ctx context.Context, f Filter) ([]*Deposit, error) {
	return s.store.List(ctx, f)
}

// Review moves a deposit to newStatus and settles the wallet across the
// Confirmed edge: entering Confirmed credits the amount (deficit clear
// and hold merge included), leaving Confirmed subtracts it straight off
// the balance. Every other transition touches no money. The acting
// admin authorizes with their own transactional password.
func (s *Service) Review(ctx context.Context, actorID, adminPassword, id, newStatus string) (*Deposit, error) {
	if err := s.users.VerifyTransactionalPassword(ctx, actorID, adminPassword); err != nil {
		return nil, ErrBadAdminPassword
	}
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, newStatus)
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := d.Status

	d, err = s.store.UpdateStatus(ctx, id, newStatus)
	if err != nil {
		return nil, err
	}

	amount, _ := money.Parse(d.Amount)
	switch {
	case oldStatus != StatusConfirmed && newStatus == StatusConfirmed:
		w, err := s.wallets.Credit(ctx, d.UserID, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to credit confirmed deposit: %w", err)
		}
		s.notifyWorker(ctx, d.UserID, "Deposit Update",
			fmt.Sprintf("Your deposit of %s USD has validated. New Balance is %s USD", d.Amount, w.Balance))
	case oldStatus == StatusConfirmed && newStatus != StatusConfirmed:
		w, err := s.wallets.Adjust(ctx, d.UserID, -amount)
		if err != nil {
			return nil, fmt.Errorf("failed to reverse confirmed deposit: %w", err)
		}
		s.notifyWorker(ctx, d.UserID, "Deposit Update",
			fmt.Sprintf("Your deposit of %s USD has been Cancelled. New Balance is %s USD", d.Amount, w.Balance))
	default:
		balance := "0.00"
		if w, err := s.wallets.Get(ctx, d.UserID); err == nil {
			balance = w.Balance
		}
		s.notifyWorker(ctx, d.UserID, "Deposit Update",
			fmt.Sprintf("Your deposit of %s USD has been Rejected. New Balance is %s USD", d.Amount, balance))
	}

	s.auditReview(ctx, actorID, d)
	ReviewsTotal.WithLabelValues(newStatus).Inc()
	return d, nil
}

func (s *Service) notifyWorker(ctx context.Context, userID, title, message string) {
	if err := s.notify.NotifyUser(ctx, userID, title, message); err != nil {
		s.logger.Warn("user notification failed", "user", userID, "title", title, "error", err)
	}
}

func (s *Service) auditReview(ctx context.Context, actorID string, d *Deposit) {
	username := d.UserID
	if u, err := s.users.Get(ctx, d.UserID); err == nil {
		username = u.Username
	}
	s.notify.Log(ctx, actorID,
		fmt.Sprintf("Updated deposit #%s for user %s to status '%s'. Amount: %s USD", d.ID, username, d.Status, d.Amount), "")
}
