// Package reset rolls daily counters over at local midnight. A
// singleton tracker row records the last boundary handled; every
// incoming request (plus a slow background ticker covering quiet
// deployments) checks whether a new midnight has passed in the
// configured timezone and, if so, claims the boundary and runs one
// reset pass.
//
// Workers parked on an unplayed reserved special task keep their
// submission count and profit across the rollover so they resume at
// the same rank the next day; everyone else starts from zero. Salaries
// are zeroed for both groups.
package reset

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/tasks"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

// ErrInvalidInterval rejects wake cadences under one hour.
var ErrInvalidInterval = errors.New("reset: interval must be at least one hour")

// Tracker is the singleton row recording the last reset boundary
// handled. ResetIntervalHours is an operator knob for the background
// ticker cadence; the midnight rule alone decides when a pass fires.
type Tracker struct {
	LastResetTime      time.Time `json:"lastResetTime"`
	ResetIntervalHours int       `json:"resetIntervalHours"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Store persists the tracker. ClaimReset must be atomic: of all
// concurrent callers presenting the same boundary, exactly one sees
// true.
type Store interface {
	Get(ctx context.Context) (*Tracker, error)
	ClaimReset(ctx context.Context, boundary time.Time) (bool, error)
	SetInterval(ctx context.Context, hours int) (*Tracker, error)
}

// Service evaluates the reset condition and runs the pass.
type Service struct {
	store    Store
	users    *users.Service
	wallets  *wallet.Service
	engine   *tasks.Service
	settings *settings.Service
	logger   *slog.Logger

	// Unix seconds of the newest boundary already claimed, by this or
	// any other instance. Keeps per-request ticks to one atomic load.
	handled atomic.Int64
}

func NewService(store Store, us *users.Service, w *wallet.Service, engine *tasks.Service, st *settings.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, users: us, wallets: w, engine: engine, settings: st, logger: logger}
}

// boundary returns the most recent midnight in the configured
// timezone, expressed in UTC.
func (s *Service) boundary(ctx context.Context, now time.Time) time.Time {
	local := now.In(s.settings.Location(ctx))
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return midnight.UTC()
}

// Tick checks whether a reset boundary has passed and, when this
// caller wins the claim, runs the pass. It reports whether the pass
// ran here. Safe to call from every request.
func (s *Service) Tick(ctx context.Context) (bool, error) {
	boundary := s.boundary(ctx, time.Now())
	if s.handled.Load() >= boundary.Unix() {
		return false, nil
	}

	claimed, err := s.store.ClaimReset(ctx, boundary)
	if err != nil {
		return false, err
	}
	// Claimed or not, this boundary needs no further attention from
	// this instance.
	s.handled.Store(boundary.Unix())
	if !claimed {
		return false, nil
	}

	s.performReset(ctx)
	return true, nil
}

// performReset runs the rollover. Each step is best-effort: a failing
// step is logged and the rest still run, so one bad query cannot leave
// every counter stale until the next day.
func (s *Service) performReset(ctx context.Context) {
	started := time.Now()

	preserve, err := s.engine.UsersWithPendingSpecials(ctx)
	if err != nil {
		s.logger.Error("daily reset: listing parked workers failed", "error", err)
		preserve = nil
	}

	touched, err := s.users.ResetDaily(ctx, preserve)
	if err != nil {
		s.logger.Error("daily reset: counter reset failed", "error", err)
	}

	salaries, err := s.wallets.ZeroAllSalaries(ctx)
	if err != nil {
		s.logger.Error("daily reset: salary reset failed", "error", err)
	}

	DailyResetsTotal.Inc()
	ResetUsersTotal.Add(float64(touched))
	ResetPreservedTotal.Add(float64(len(preserve)))

	s.logger.Info("daily reset completed",
		"users", touched,
		"preserved", len(preserve),
		"salariesZeroed", salaries,
		"elapsed", time.Since(started))
}

// Run re-checks the reset condition on a fixed cadence until ctx is
// cancelled. Requests already tick via Middleware; the ticker covers
// nights with no traffic.
func (s *Service) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}

	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("daily reset tick failed", "error", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("daily reset tick failed", "error", err)
			}
		}
	}
}

// Tracker returns the singleton reset tracker.
func (s *Service) Tracker(ctx context.Context) (*Tracker, error) {
	return s.store.Get(ctx)
}

// SetInterval updates the background ticker cadence hint.
func (s *Service) SetInterval(ctx context.Context, hours int) (*Tracker, error) {
	if hours < 1 {
		return nil, ErrInvalidInterval
	}
	return s.store.SetInterval(ctx, hours)
}
