package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/wallet"
)

// ReferralMilestoneCents is the accrued referral bonus that triggers a
// payout notification and resets the accumulator.
const ReferralMilestoneCents int64 = 1000

// Service wraps the user store with signup orchestration, credential
// checks, and profile assembly.
type Service struct {
	store    Store
	wallets  *wallet.Service
	settings *settings.Service
	packs    *packs.Service
	logger   *slog.Logger
}

// NewService creates a user service.
func NewService(store Store, wallets *wallet.Service, st *settings.Service, pk *packs.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, wallets: wallets, settings: st, packs: pk, logger: logger}
}

// SignupParams is the registration input. The invitation code is
// required and must resolve to either another user's referral code or
// an unused admin-minted code.
type SignupParams struct {
	Username              string
	Email                 string
	Phone                 string
	Password              string
	TransactionalPassword string
	FirstName             string
	LastName              string
	Gender                string
	InvitationCode        string
}

// Signup registers a new worker account and provisions its wallet.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*User, error) {
	referrer, code, err := s.resolveInvitation(ctx, p.InvitationCode)
	if err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	txnHash, err := bcrypt.GenerateFromPassword([]byte(p.TransactionalPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transactional password: %w", err)
	}

	u := &User{
		Username:                  strings.TrimSpace(p.Username),
		Email:                     strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:                     strings.TrimSpace(p.Phone),
		FirstName:                 p.FirstName,
		LastName:                  p.LastName,
		Gender:                    p.Gender,
		ReferralCode:              newCode(),
		PasswordHash:              string(passwordHash),
		TransactionalPasswordHash: string(txnHash),
		Active:                    true,
		TodayProfit:               "0.00",
		ReferralBonus:             "0.00",
		CreatedAt:                 time.Now(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	if _, err := s.wallets.Create(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("failed to provision wallet: %w", err)
	}

	// Post-creation bookkeeping is best effort: a lost invitation link
	// must not undo a registered account.
	if code != nil {
		if err := s.store.ConsumeInvitationCode(ctx, code.ID); err != nil {
			s.logger.Warn("failed to consume invitation code", "code", code.Code, "error", err)
		}
	}
	if referrer != nil {
		inv := &Invitation{
			ReferrerID: referrer.ID,
			RefereeID:  u.ID,
			CreatedAt:  time.Now(),
		}
		if err := s.store.CreateInvitation(ctx, inv); err != nil {
			s.logger.Warn("failed to record invitation", "referrer", referrer.ID, "error", err)
		}
	}

	SignupsTotal.Inc()
	return u, nil
}

// resolveInvitation maps a signup code to a referrer (another user's
// referral code) or an unused one-shot invitation code.
func (s *Service) resolveInvitation(ctx context.Context, raw string) (*User, *InvitationCode, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return nil, nil, ErrInvalidInvitation
	}

	referrer, err := s.store.GetByReferralCode(ctx, code)
	if err == nil {
		return referrer, nil, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, nil, err
	}

	ic, err := s.store.GetInvitationCode(ctx, code)
	if errors.Is(err, ErrInvitationNotFound) {
		return nil, nil, ErrInvalidInvitation
	}
	if err != nil {
		return nil, nil, err
	}
	if ic.Used {
		return nil, nil, ErrInvitationUsed
	}
	return nil, ic, nil
}

// EnsureStaff creates the named staff account if it does not already
// exist. An existing account is returned untouched, so a redeploy
// never resets a rotated password. The secret seeds both the login and
// the transactional password; review endpoints check the latter.
func (s *Service) EnsureStaff(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	u, err := s.store.GetByUsernameOrEmail(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u = &User{
		Username:                  username,
		Email:                     strings.ToLower(strings.TrimSpace(email)),
		ReferralCode:              newCode(),
		PasswordHash:              string(hash),
		TransactionalPasswordHash: string(hash),
		IsStaff:                   true,
		Active:                    true,
		TodayProfit:               "0.00",
		ReferralBonus:             "0.00",
		CreatedAt:                 time.Now(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials for the given username or email.
func (s *Service) Authenticate(ctx context.Context, handle, password string) (*User, error) {
	u, err := s.store.GetByUsernameOrEmail(ctx, strings.TrimSpace(handle))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}
	return u, nil
}

// VerifyTransactionalPassword checks the 4-character transactional
// password used to authorize sensitive operations.
func (s *Service) VerifyTransactionalPassword(ctx context.Context, userID, password string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.TransactionalPasswordHash), []byte(password)) != nil {
		return ErrWrongTransactionalPassword
	}
	return nil
}

// RotateSession generates a fresh session id for one surface,
// invalidating that surface's previously issued tokens.
func (s *Service) RotateSession(ctx context.Context, userID, surface string) (string, error) {
	sid := uuid.NewString()
	if err := s.store.SetSession(ctx, userID, surface, sid); err != nil {
		return "", err
	}
	return sid, nil
}

// ChangePassword replaces the login password after verifying the
// current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.store.Update(ctx, u)
}

// ChangeTransactionalPassword replaces the transactional password after
// verifying the current one.
func (s *Service) ChangeTransactionalPassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.TransactionalPasswordHash), []byte(current)) != nil {
		return ErrWrongTransactionalPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash transactional password: %w", err)
	}
	u.TransactionalPasswordHash = string(hash)
	return s.store.Update(ctx, u)
}

// SetPassword replaces a user's login password without checking the
// current one. Admin path only.
func (s *Service) SetPassword(ctx context.Context, userID, next string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.store.Update(ctx, u)
}

// SetTransactionalPassword replaces a user's transactional password
// without checking the current one. Admin path only.
func (s *Service) SetTransactionalPassword(ctx context.Context, userID, next string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash transactional password: %w", err)
	}
	u.TransactionalPasswordHash = string(hash)
	return s.store.Update(ctx, u)
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.Get(ctx, id)
}

// GetByUsernameOrEmail returns a user by login handle.
func (s *Service) GetByUsernameOrEmail(ctx context.Context, handle string) (*User, error) {
	return s.store.GetByUsernameOrEmail(ctx, strings.TrimSpace(handle))
}

// Update persists edits to a user row.
func (s *Service) Update(ctx context.Context, u *User) error {
	return s.store.Update(ctx, u)
}

// List returns users for the admin surface.
func (s *Service) List(ctx context.Context, f Filter) ([]*User, error) {
	return s.store.List(ctx, f)
}

// TouchLastConnection stamps the user's last seen time. Called from the
// auth middleware for non-staff users; failures are swallowed there.
func (s *Service) TouchLastConnection(ctx context.Context, id string) error {
	return s.store.TouchLastConnection(ctx, id)
}

// CountWorkers returns the number of non-staff accounts.
func (s *Service) CountWorkers(ctx context.Context) (int, error) {
	return s.store.CountWorkers(ctx)
}

// LoggedInBetween lists users whose last connection falls in
// [since, until), newest first.
func (s *Service) LoggedInBetween(ctx context.Context, since, until time.Time) ([]*User, error) {
	return s.store.LoggedInBetween(ctx, since, until)
}

// RegistrationsByMonth buckets this year's non-staff signups by month.
func (s *Service) RegistrationsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error) {
	return s.store.RegistrationsByMonth(ctx, year, loc)
}

// Profile is the full user-surface payload: the account plus its
// wallet, the platform settings snapshot, and the day progress derived
// from the assigned pack.
type Profile struct {
	*User
	Wallet             *wallet.Wallet     `json:"wallet"`
	Settings           *settings.Settings `json:"settings"`
	TotalNumberCanPlay int                `json:"totalNumberCanPlay"`
	CurrentNumberCount int                `json:"currentNumberCount"`
}

// BuildProfile assembles the profile payload for a user, provisioning a
// wallet if one is somehow missing.
func (s *Service) BuildProfile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	w, err := s.wallets.Get(ctx, u.ID)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		w, err = s.wallets.Create(ctx, u.ID)
	}
	if err != nil {
		return nil, err
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	canPlay := 0
	if w.PackID != "" {
		if pack, err := s.packs.Get(ctx, w.PackID); err == nil {
			canPlay = pack.DailyMissions
		}
	}

	return &Profile{
		User:               u,
		Wallet:             w,
		Settings:           st,
		TotalNumberCanPlay: canPlay,
		CurrentNumberCount: u.SubmissionsToday,
	}, nil
}

// TeamMember is one row of a referrer's team listing.
type TeamMember struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	BonusPaid bool      `json:"bonusPaid"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Team lists the users who signed up with this user's referral code.
func (s *Service) Team(ctx context.Context, referrerID string) ([]TeamMember, error) {
	invs, err := s.store.InvitationsByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	members := make([]TeamMember, 0, len(invs))
	for _, inv := range invs {
		m := TeamMember{UserID: inv.RefereeID, BonusPaid: inv.BonusPaid, JoinedAt: inv.CreatedAt}
		if u, err := s.store.Get(ctx, inv.RefereeID); err == nil {
			m.Username = u.Username
		}
		members = append(members, m)
	}
	return members, nil
}

// RecordSubmission advances the day counters after a completed review:
// submissionsToday +1 and todayProfit += commission. Returns the new
// submission count.
func (s *Service) RecordSubmission(ctx context.Context, userID string, commissionCents int64) (int, error) {
	count, err := s.store.IncrementSubmissions(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.store.AddTodayProfit(ctx, userID, commissionCents); err != nil {
		return count, err
	}
	return count, nil
}

// AddTodayProfit adds to todayProfit without advancing the submission
// count. Used when a later special at the same rank keeps the rank
// parked.
func (s *Service) AddTodayProfit(ctx context.Context, userID string, cents int64) error {
	return s.store.AddTodayProfit(ctx, userID, cents)
}

// SetTodayProfit overwrites todayProfit. Admin surface only.
func (s *Service) SetTodayProfit(ctx context.Context, userID string, cents int64) error {
	return s.store.SetTodayProfit(ctx, userID, cents)
}

// IncrementSets bumps the completed-set counter and returns it.
func (s *Service) IncrementSets(ctx context.Context, userID string) (int, error) {
	return s.store.IncrementSets(ctx, userID)
}

// SetDailyCounters overwrites both day counters. Admin account reset.
func (s *Service) SetDailyCounters(ctx context.Context, userID string, submissions, sets int) error {
	return s.store.SetDailyCounters(ctx, userID, submissions, sets)
}

// AccrueReferral adds a referral bonus to the referrer's accumulator.
// Crossing the milestone deducts it and reports milestone=true so the
// caller can notify the referrer.
func (s *Service) AccrueReferral(ctx context.Context, referrerID string, cents int64) (milestone bool, total int64, err error) {
	total, err = s.store.AdjustReferralBonus(ctx, referrerID, cents)
	if err != nil {
		return false, 0, err
	}
	if total >= ReferralMilestoneCents {
		total, err = s.store.AdjustReferralBonus(ctx, referrerID, -ReferralMilestoneCents)
		if err != nil {
			return false, total, err
		}
		ReferralMilestonesTotal.Inc()
		return true, total, nil
	}
	return false, total, nil
}

// InvitationByReferee returns the invitation that brought a user in.
func (s *Service) InvitationByReferee(ctx context.Context, refereeID string) (*Invitation, error) {
	return s.store.InvitationByReferee(ctx, refereeID)
}

// MarkInvitationBonusPaid settles the one-time deposit referral bonus.
func (s *Service) MarkInvitationBonusPaid(ctx context.Context, id string) error {
	return s.store.MarkInvitationBonusPaid(ctx, id)
}

// ResetDaily performs the midnight counter reset. Users in preserve
// (parked on an unplayed special task) keep submissionsToday and
// todayProfit so they resume at the same rank.
func (s *Service) ResetDaily(ctx context.Context, preserve []string) (int, error) {
	return s.store.ResetDaily(ctx, preserve)
}

// MintInvitationCode creates a single-use signup code.
func (s *Service) MintInvitationCode(ctx context.Context, createdBy string) (*InvitationCode, error) {
	ic := &InvitationCode{
		Code:      newCode(),
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateInvitationCode(ctx, ic); err != nil {
		return nil, err
	}
	return ic, nil
}

// ListInvitationCodes returns all minted codes, newest first.
func (s *Service) ListInvitationCodes(ctx context.Context) ([]*InvitationCode, error) {
	return s.store.ListInvitationCodes(ctx)
}

// ReferralPercent reads the configured referral percentage.
func (s *Service) ReferralPercent(ctx context.Context) float64 {
	pct, _ := s.settings.ReferralPercent(ctx)
	return pct
}

// ReferralBonusFor computes the referral bonus a referrer earns on a
// referee amount (commission or confirmed deposit).
func (s *Service) ReferralBonusFor(ctx context.Context, amountCents int64) int64 {
	pct, _ := s.settings.ReferralPercent(ctx)
	return money.Percent(amountCents, pct)
}

// newCode mints the short uppercase codes used for referrals and
// invitations.
func newCode() string {
	b := make([]byte, 4)
	rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}
