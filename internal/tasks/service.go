package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mbd888/trackrate/internal/holdband"
	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/products"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/syncutil"
	"github.com/mbd888/trackrate/internal/traces"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

// defaultProfitPercent applies when a worker's pack cannot be resolved.
const defaultProfitPercent = 0.5

// fallbackMinimumCents applies when the settings row cannot be read.
const fallbackMinimumCents = 10000

// Service runs the assignment and play engine. All play-path work for one
// worker is serialized by a per-user lock so selection, reservation and
// counter updates never interleave.
type Service struct {
	store    Store
	products *products.Service
	wallets  *wallet.Service
	packs    *packs.Service
	bands    *holdband.Service
	users    *users.Service
	settings *settings.Service
	notify   *notify.Service
	logger   *slog.Logger

	locks syncutil.KeyedMutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(
	store Store,
	productsSvc *products.Service,
	wallets *wallet.Service,
	packsSvc *packs.Service,
	bands *holdband.Service,
	usersSvc *users.Service,
	settingsSvc *settings.Service,
	notifier *notify.Service,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		products: productsSvc,
		wallets:  wallets,
		packs:    packsSvc,
		bands:    bands,
		users:    usersSvc,
		settings: settingsSvc,
		notify:   notifier,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// playerState snapshots the worker, wallet and pack a request operates on.
type playerState struct {
	user   *users.User
	wallet *wallet.Wallet
	pack   *packs.Pack // nil when the wallet's pack cannot be resolved
}

func (st *playerState) balanceCents() int64 {
	cents, _ := money.Parse(st.wallet.Balance)
	return cents
}

func (st *playerState) dailyMissions() int {
	if st.pack != nil {
		return st.pack.DailyMissions
	}
	return 0
}

func (st *playerState) numberOfSets() int {
	if st.pack != nil {
		return st.pack.NumberOfSets
	}
	return 0
}

func (st *playerState) profitPercent() float64 {
	if st.pack != nil {
		return st.pack.ProfitPercentage
	}
	return defaultProfitPercent
}

func (st *playerState) specialPercent() float64 {
	if st.pack != nil {
		return st.pack.CommissionPercentage()
	}
	return 5 * defaultProfitPercent
}

func (s *Service) loadPlayer(ctx context.Context, userID string) (*playerState, error) {
	u, err := s.users.Get(ctx, userID)
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
	st := &playerState{user: u, wallet: w}
	if w.PackID != "" {
		pk, err := s.packs.Get(ctx, w.PackID)
		if err == nil {
			st.pack = pk
		}
	}
	return st, nil
}

// CurrentTask returns the worker's active assignment, creating a fresh one
// when nothing is queued. Eligibility is checked first and failures do not
// mutate any state.
func (s *Service) CurrentTask(ctx context.Context, userID string) (*TaskView, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	st, err := s.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCanPlay(ctx, st); err != nil {
		return nil, err
	}
	t, err := s.selectCurrent(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, st, t)
}

// Play marks the worker's current task as reviewed. When the current task
// is a special the worker cannot afford, it is parked instead: the amount
// is reserved and the result reports played=false.
func (s *Service) Play(ctx context.Context, userID string, rating int, comment string) (*PlayResult, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	ctx, span := traces.StartSpan(ctx, "tasks.Play",
		traces.UserID(userID), attribute.Int("rating", rating))
	defer span.End()

	unlock := s.locks.Lock(userID)
	defer unlock()

	st, err := s.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCanPlay(ctx, st); err != nil {
		return nil, err
	}
	t, err := s.selectCurrent(ctx, st)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(traces.TaskID(t.ID), traces.GameNumber(t.GameNumber), traces.Special(t.Special))
	return s.markPlayed(ctx, st, t, rating, comment)
}

// PlayPending resumes a parked task. The gate here skips the minimum
// balance requirement so a worker whose deposit just cleared a reserved
// special can finish it even below their pack's minimum.
func (s *Service) PlayPending(ctx context.Context, userID string, rating int, comment string) (*PlayResult, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	ctx, span := traces.StartSpan(ctx, "tasks.PlayPending",
		traces.UserID(userID), attribute.Int("rating", rating))
	defer span.End()

	unlock := s.locks.Lock(userID)
	defer unlock()

	st, err := s.loadPlayer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCanPlayPending(st); err != nil {
		return nil, err
	}
	t, err := s.selectCurrent(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.markPlayed(ctx, st, t, rating, comment)
}

func (s *Service) eligErr(code, reason string) error {
	EligibilityRejectionsTotal.WithLabelValues(code).Inc()
	return &EligibilityError{Code: code, Reason: reason}
}

// checkCanPlay runs the full eligibility gate: negative balance, minimum
// balance (pack's own, else the platform fallback, skipped entirely for
// waived workers), then set completion.
func (s *Service) checkCanPlay(ctx context.Context, st *playerState) error {
	bal := st.balanceCents()
	if bal < 0 {
		return s.eligErr(EligNegativeBalance, "You have a negative balance, please add funds to proceed.")
	}
	if !st.user.MinBalanceWaived {
		packMin := int64(0)
		if st.pack != nil {
			packMin, _ = money.Parse(st.pack.MinimumBalance)
		}
		if packMin > 0 {
			if bal < packMin {
				return s.eligErr(EligMinimumBalance, fmt.Sprintf(
					"You need a minimum of %s USD balance for your current pack to review albums.", money.Format(packMin)))
			}
		} else {
			min, err := s.settings.MinimumBalance(ctx)
			if err != nil {
				min = fallbackMinimumCents
			}
			if bal < min {
				return s.eligErr(EligMinimumBalance, fmt.Sprintf(
					"You need a minimum of %s USD balance to review albums.", money.Format(min)))
			}
		}
	}
	return s.checkSetCompletion(st)
}

func (s *Service) checkSetCompletion(st *playerState) error {
	daily := st.dailyMissions()
	if daily <= 0 || st.user.SubmissionsToday < daily {
		return nil
	}
	sets := st.user.SetsToday
	if st.numberOfSets() > sets {
		return s.eligErr(EligSetCompleted, fmt.Sprintf(
			"Good job!!!. The %s set of album reviews has been completed. Kindly request for the next sets.", ordinal(sets)))
	}
	return s.eligErr(EligAllSetsCompleted, fmt.Sprintf(
		"Good job!!!. You have completed all %d album review sets for today!!!", sets))
}

// checkCanPlayPending is the reduced gate for resuming parked tasks: only
// a negative balance or the daily cap blocks.
func (s *Service) checkCanPlayPending(st *playerState) error {
	if st.balanceCents() < 0 {
		return s.eligErr(EligNegativeBalance, "You have a negative balance, please add funds to proceed.")
	}
	daily := st.dailyMissions()
	if daily > 0 && st.user.SubmissionsToday >= daily {
		return s.eligErr(EligDailyCap,
			"You have reached the maximum number of albums you can review today. Please upgrade your package for more options.")
	}
	return nil
}

// selectCurrent walks the priority order. It may mutate state: a special
// anchored at the next rank is reserved, an unreserved regular is promoted
// to pending, and an empty queue produces a fresh assignment.
func (s *Service) selectCurrent(ctx context.Context, st *playerState) (*Task, error) {
	t, err := s.store.PendingSpecial(ctx, st.user.ID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	rank := st.user.SubmissionsToday + 1
	t, err = s.store.SpecialAtRank(ctx, st.user.ID, rank)
	if err == nil {
		return s.activateSpecial(ctx, st, t)
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	t, err = s.store.PendingRegular(ctx, st.user.ID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	t, err = s.store.OldestUnplayedRegular(ctx, st.user.ID)
	if err == nil {
		t.Pending = true
		return s.store.Update(ctx, t)
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	return s.assignFresh(ctx, st)
}

// activateSpecial reserves a rank-anchored special on first presentation:
// the amount becomes balance plus a fresh draw from the hold band, the
// task goes pending, and the full amount is debited so the balance drops
// negative with the amount on hold. Specials injected without a band are
// presented as-is.
func (s *Service) activateSpecial(ctx context.Context, st *playerState, t *Task) (*Task, error) {
	if t.HoldBandID == "" {
		return t, nil
	}
	band, err := s.bands.Get(ctx, t.HoldBandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hold band: %w", err)
	}
	draw, err := s.bandDraw(band)
	if err != nil {
		return nil, fmt.Errorf("failed to draw hold amount: %w", err)
	}

	amount := st.balanceCents() + draw
	t.Amount = money.Format(amount)
	t.Commission = money.Format(money.Percent(amount, t.CommissionPercentage))
	t.Pending = true
	updated, err := s.store.Update(ctx, t)
	if err != nil {
		return nil, err
	}
	if _, err := s.wallets.Debit(ctx, st.user.ID, amount); err != nil {
		t.Pending = false
		if _, uerr := s.store.Update(ctx, t); uerr != nil {
			s.logger.Error("failed to revert special reservation",
				"task", t.ID, "user", st.user.ID, "error", uerr)
		}
		return nil, fmt.Errorf("failed to reserve special amount: %w", err)
	}
	SpecialsActivatedTotal.Inc()
	return updated, nil
}

// assignFresh creates a new regular task around the worker's balance.
func (s *Service) assignFresh(ctx context.Context, st *playerState) (*Task, error) {
	since, until := s.dayWindow(ctx)
	seen, err := s.store.SeenProductIDs(ctx, st.user.ID, since, until)
	if err != nil {
		return nil, err
	}
	p, err := s.pickProduct(ctx, st.balanceCents(), seen)
	if err != nil {
		if errors.Is(err, products.ErrEmptyCatalog) {
			return nil, s.eligErr(EligNoAlbums,
				"No suitable albums available for your current balance. Please add funds to access more album options.")
		}
		return nil, err
	}

	ratingNo, err := s.mintRatingNo(ctx)
	if err != nil {
		return nil, err
	}
	pct := st.profitPercent()
	price := p.PriceCents()
	t := &Task{
		UserID:               st.user.ID,
		ProductIDs:           []string{p.ID},
		Amount:               money.Format(price),
		Commission:           money.Format(money.Percent(price, pct)),
		CommissionPercentage: pct,
		RatingNo:             ratingNo,
		Pending:              true,
		Active:               true,
	}
	created, err := s.store.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	TasksAssignedTotal.Inc()
	return created, nil
}

// markPlayed records the review outcome and advances the day counters.
func (s *Service) markPlayed(ctx context.Context, st *playerState, t *Task, rating int, comment string) (*PlayResult, error) {
	commission := t.CommissionCents()
	amount := t.AmountCents()

	if t.Pending {
		// Reserved at presentation; only the commission moves now.
		if err := s.payCommission(ctx, st.user.ID, commission); err != nil {
			return nil, err
		}
	} else if st.balanceCents() < amount && t.Special {
		// Park the special: reserve the amount and wait for funds.
		t.Pending = true
		updated, err := s.store.Update(ctx, t)
		if err != nil {
			return nil, err
		}
		if _, err := s.wallets.Debit(ctx, st.user.ID, amount); err != nil {
			return nil, fmt.Errorf("failed to reserve special amount: %w", err)
		}
		TasksParkedTotal.Inc()
		view, err := s.buildView(ctx, st, updated)
		if err != nil {
			return nil, err
		}
		return &PlayResult{Task: view, Played: false, Message: "Insufficient balance to review this album."}, nil
	} else {
		if err := s.payCommission(ctx, st.user.ID, commission); err != nil {
			return nil, err
		}
	}

	t.RatingScore = rating
	t.Comment = comment
	t.Played = true
	t.Pending = false

	// A special leaves the rank counter alone while more specials wait at
	// the same rank, so the worker replays that rank until the queue drains.
	increment := true
	if t.Special {
		remaining, err := s.store.UnplayedSpecialsAtRank(ctx, st.user.ID, t.GameNumber, t.ID)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			increment = false
		}
	}

	if increment {
		count, err := s.users.RecordSubmission(ctx, st.user.ID, commission)
		if err != nil {
			return nil, err
		}
		s.propagateReferral(ctx, st.user, commission)

		sets := st.user.SetsToday
		daily := st.dailyMissions()
		if daily > 0 && count >= daily {
			sets, err = s.users.IncrementSets(ctx, st.user.ID)
			if err != nil {
				return nil, err
			}
			SetsCompletedTotal.Inc()
			ord := ordinal(sets)
			s.adminNotify(ctx, "Worker Set Completed", fmt.Sprintf(
				"%s has completed all album reviews in the %s set, You can proceed to reset account", st.user.Username, ord))
			if sets < st.numberOfSets() {
				s.userNotify(ctx, st.user.ID, "Album Review Set Completed", fmt.Sprintf(
					"Good job!!!. The %s set of album reviews has been completed. Kindly request for the next sets.", ord))
			}
		}
		if n := st.numberOfSets(); n > 0 && sets >= n {
			s.userNotify(ctx, st.user.ID, "Good job!!! Album Review Set Completed", fmt.Sprintf(
				"You have completed all %d album review sets for today!!!!!!", sets))
			s.adminNotify(ctx, "Worker Set Completed", fmt.Sprintf(
				"%s has completed all %d album review sets for today", st.user.Username, sets))
		}
		st.user.SubmissionsToday = count
		st.user.SetsToday = sets
	} else {
		if err := s.users.AddTodayProfit(ctx, st.user.ID, commission); err != nil {
			return nil, err
		}
		s.propagateReferral(ctx, st.user, commission)
	}

	updated, err := s.store.Update(ctx, t)
	if err != nil {
		return nil, err
	}
	TasksPlayedTotal.WithLabelValues(taskKind(t)).Inc()

	view, err := s.buildView(ctx, st, updated)
	if err != nil {
		return nil, err
	}
	return &PlayResult{Task: view, Played: true, Message: "Album reviewed successfully!"}, nil
}

// payCommission credits a commission into both the balance and the
// commission running total.
func (s *Service) payCommission(ctx context.Context, userID string, cents int64) error {
	if cents <= 0 {
		return nil
	}
	if _, err := s.wallets.Credit(ctx, userID, cents); err != nil {
		return err
	}
	if _, err := s.wallets.CreditCommission(ctx, userID, cents); err != nil {
		return err
	}
	return nil
}

// propagateReferral pays the referrer's cut of a commission. Every failure
// here is logged and swallowed; a broken referral chain must never abort
// the worker's own earnings.
func (s *Service) propagateReferral(ctx context.Context, player *users.User, commission int64) {
	inv, err := s.users.InvitationByReferee(ctx, player.ID)
	if err != nil {
		if !errors.Is(err, users.ErrInvitationNotFound) {
			s.logger.Warn("referral lookup failed", "user", player.ID, "error", err)
		}
		return
	}
	bonus := s.users.ReferralBonusFor(ctx, commission)
	if bonus <= 0 {
		return
	}
	if _, err := s.wallets.Credit(ctx, inv.ReferrerID, bonus); err != nil {
		s.logger.Warn("referral credit failed",
			"referrer", inv.ReferrerID, "user", player.ID, "error", err)
		return
	}
	milestone, _, err := s.users.AccrueReferral(ctx, inv.ReferrerID, bonus)
	if err != nil {
		s.logger.Warn("referral accrual failed", "referrer", inv.ReferrerID, "error", err)
		return
	}
	if milestone {
		s.userNotify(ctx, inv.ReferrerID, "Referral Bonus",
			"You have received a total of 10 USD for referral bonus!!!!")
	}
}

// InjectParams seeds a special task for a worker.
type InjectParams struct {
	UserID           string
	HoldBandID       string
	NumberOfProducts int
	RankAppearance   int
}

// InjectSpecial creates a special task anchored at a rank of the day. The
// album combination is drawn so its total price lands between balance+min
// and balance+max of the hold band; the amount itself is fixed later, at
// presentation, against the balance the worker holds then. Rejected while
// the worker already has a reserved special outstanding.
func (s *Service) InjectSpecial(ctx context.Context, p InjectParams) (*Task, error) {
	ctx, span := traces.StartSpan(ctx, "tasks.InjectSpecial",
		traces.UserID(p.UserID), traces.Special(true))
	defer span.End()

	if _, err := s.store.PendingSpecial(ctx, p.UserID); err == nil {
		return nil, ErrSpecialPending
	} else if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}
	prepared, err := s.prepareSpecial(ctx, p)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, prepared)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(traces.TaskID(created.ID), traces.Amount(created.Amount))
	SpecialsInjectedTotal.Inc()
	return created, nil
}

// UpdateSpecial re-anchors an injected special that has not yet been
// presented or played. Amount, commission and albums are recomputed
// against the target worker's current balance.
func (s *Service) UpdateSpecial(ctx context.Context, id string, p InjectParams) (*Task, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Special {
		return nil, ErrTaskNotFound
	}
	if existing.Played || existing.Pending {
		return nil, ErrTaskNotEditable
	}
	prepared, err := s.prepareSpecial(ctx, p)
	if err != nil {
		return nil, err
	}
	prepared.ID = existing.ID
	prepared.RatingNo = existing.RatingNo
	prepared.CreatedAt = existing.CreatedAt
	return s.store.Update(ctx, prepared)
}

// DeleteSpecial removes an injected special that has not yet been
// presented or played.
func (s *Service) DeleteSpecial(ctx context.Context, id string) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Special {
		return ErrTaskNotFound
	}
	if existing.Played || existing.Pending {
		return ErrTaskNotEditable
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) prepareSpecial(ctx context.Context, p InjectParams) (*Task, error) {
	if p.NumberOfProducts < 0 || p.NumberOfProducts > MaxSpecialProducts {
		return nil, ErrInvalidProductCount
	}
	if p.RankAppearance < 0 {
		return nil, ErrInvalidRank
	}
	st, err := s.loadPlayer(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	band, err := s.bands.Get(ctx, p.HoldBandID)
	if err != nil {
		return nil, err
	}
	if !band.Active {
		return nil, holdband.ErrBandNotFound
	}
	lo, hi, ok := band.Bounds()
	if !ok {
		return nil, holdband.ErrInvalidRange
	}

	balance := st.balanceCents()
	ids, err := s.selectCombination(ctx, balance+lo, balance+hi, p.NumberOfProducts)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &HoldRangeError{Min: money.Format(lo), Max: money.Format(hi), Balance: st.wallet.Balance}
	}

	draw, err := s.bandDraw(band)
	if err != nil {
		return nil, err
	}
	ratingNo, err := s.mintRatingNo(ctx)
	if err != nil {
		return nil, err
	}
	amount := balance + draw
	pct := st.specialPercent()
	return &Task{
		UserID:               p.UserID,
		ProductIDs:           ids,
		Amount:               money.Format(amount),
		Commission:           money.Format(money.Percent(amount, pct)),
		CommissionPercentage: pct,
		RatingNo:             ratingNo,
		GameNumber:           p.RankAppearance,
		Special:              true,
		Active:               true,
		HoldBandID:           band.ID,
	}, nil
}

// selectCombination returns the ids of the first randomized combination of
// exactly n albums whose total price lands in [minTotal, maxTotal] cents,
// or nil when no combination fits.
func (s *Service) selectCombination(ctx context.Context, minTotal, maxTotal int64, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []*products.Product
	for _, p := range all {
		if p.PriceCents() <= maxTotal {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) < n {
		return nil, nil
	}

	s.rngMu.Lock()
	s.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	s.rngMu.Unlock()

	// Walk combinations in lexicographic index order over the shuffled
	// slice; the search can be large for n=3, so honor cancellation.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	steps := 0
	for {
		if steps++; steps%8192 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var sum int64
		for _, i := range idx {
			sum += candidates[i].PriceCents()
		}
		if sum >= minTotal && sum <= maxTotal {
			ids := make([]string, n)
			for k, i := range idx {
				ids[k] = candidates[i].ID
			}
			return ids, nil
		}
		i := n - 1
		for i >= 0 && idx[i] == len(candidates)-n+i {
			i--
		}
		if i < 0 {
			return nil, nil
		}
		idx[i]++
		for j := i + 1; j < n; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// History pages the worker's past tasks, newest first.
func (s *Service) History(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*HistoryEntry, error) {
	list, err := s.store.History(ctx, userID, before, beforeID, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]*HistoryEntry, 0, len(list))
	for _, t := range list {
		prods, err := s.loadProducts(ctx, t.ProductIDs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &HistoryEntry{
			ID:          t.ID,
			Products:    prods,
			Amount:      t.Amount,
			Commission:  t.Commission,
			RatingScore: t.RatingScore,
			Comment:     t.Comment,
			Special:     t.Special,
			UpdatedAt:   t.UpdatedAt,
			CreatedAt:   t.CreatedAt,
			RatingNo:    t.RatingNo,
			Pending:     t.Pending,
			Played:      t.Played,
		})
	}
	return entries, nil
}

// ListSpecials returns every injected special with its worker and band.
func (s *Service) ListSpecials(ctx context.Context) ([]*SpecialView, error) {
	list, err := s.store.ListSpecials(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*SpecialView, 0, len(list))
	for _, t := range list {
		v := &SpecialView{
			ID:               t.ID,
			NumberOfProducts: len(t.ProductIDs),
			RankAppearance:   t.GameNumber,
			Amount:           t.Amount,
			Commission:       t.Commission,
			Active:           t.Active,
			Played:           t.Played,
			Pending:          t.Pending,
			CreatedAt:        t.CreatedAt,
		}
		if u, err := s.users.Get(ctx, t.UserID); err == nil {
			v.User = SpecialUser{ID: u.ID, Username: u.Username}
		} else {
			v.User = SpecialUser{ID: t.UserID}
		}
		if t.HoldBandID != "" {
			if band, err := s.bands.Get(ctx, t.HoldBandID); err == nil {
				v.Band = band
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// UsersWithPendingSpecials lists workers holding a reserved unplayed
// special. The daily reset keeps their submission counter so they resume
// at the same rank.
func (s *Service) UsersWithPendingSpecials(ctx context.Context) ([]string, error) {
	return s.store.UserIDsWithPendingSpecials(ctx)
}

// PlayedCount returns the worker's lifetime played count, optionally
// specials only. The admin listing decorates each row with this.
func (s *Service) PlayedCount(ctx context.Context, userID string, specialOnly bool) (int, error) {
	return s.store.CountPlayed(ctx, userID, specialOnly)
}

// SubmissionsBetween counts played-or-pending submissions updated in
// [since, until) across all workers.
func (s *Service) SubmissionsBetween(ctx context.Context, since, until time.Time) (int, error) {
	return s.store.CountSubmissionsBetween(ctx, since, until)
}

// SubmissionsByMonth buckets the year's submissions by month in loc.
func (s *Service) SubmissionsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error) {
	return s.store.SubmissionsByMonth(ctx, year, loc)
}

func (s *Service) dayWindow(ctx context.Context) (time.Time, time.Time) {
	loc := s.settings.Location(ctx)
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}

func (s *Service) pickProduct(ctx context.Context, balance int64, seen []string) (*products.Product, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.products.PickForAssignment(ctx, balance, seen, s.rng)
}

func (s *Service) bandDraw(band *holdband.Band) (int64, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return band.Slice(s.rng)
}

// mintRatingNo draws an 8-digit review code not yet used by another task.
func (s *Service) mintRatingNo(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		s.rngMu.Lock()
		n := s.rng.Intn(100000000)
		s.rngMu.Unlock()
		code := fmt.Sprintf("%08d", n)
		exists, err := s.store.RatingNoExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("tasks: failed to mint a unique rating number")
}

func (s *Service) userNotify(ctx context.Context, userID, title, message string) {
	if err := s.notify.NotifyUser(ctx, userID, title, message); err != nil {
		s.logger.Warn("user notification failed", "user", userID, "title", title, "error", err)
	}
}

func (s *Service) adminNotify(ctx context.Context, title, message string) {
	if err := s.notify.NotifyAdmin(ctx, title, message); err != nil {
		s.logger.Warn("admin notification failed", "title", title, "error", err)
	}
}

func taskKind(t *Task) string {
	if t.Special {
		return "special"
	}
	return "regular"
}

// ordinal renders 1 -> "1st", 2 -> "2nd", 22 -> "22nd", 111 -> "111th".
func ordinal(n int) string {
	if m := n % 100; m >= 10 && m <= 20 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}
