// Package settings manages the global platform settings row.
//
// There is exactly one Settings record. It carries the knobs the task engine
// and auth layer consult at runtime (referral percentage, registration bonus,
// minimum-balance fallback, token validity, reset timezone) plus the opaque
// contact and payment-address strings surfaced to workers on their profile.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/trackrate/internal/money"
)

// Errors
var (
	ErrNotFound        = errors.New("settings: not found")
	ErrInvalidSettings = errors.New("settings: invalid value")
)

// Settings is the singleton configuration record.
// Money fields are two-decimal USD strings; percentages are plain numbers
// where 0.5 means 0.5%.
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

// Defaults returns the settings used before an operator edits anything.
func Defaults() *Settings {
	return &Settings{
		PercentageOfSponsors:         10,
		BonusWhenRegistering:         "0.00",
		MinimumBalanceForSubmissions: "0.00",
		TokenValidityPeriodHours:     24,
		ServiceAvailabilityStartTime: "00:00",
		ServiceAvailabilityEndTime:   "23:59",
		Timezone:                     "US/Eastern",
	}
}

// Store persists the singleton record.
type Store interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) (*Settings, error)
}

// Service validates edits and exposes typed accessors for the rest of the
// system. Callers that only need one value should use the accessor rather
// than fetching the whole record.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.store.Get(ctx)
}

func (s *Service) Update(ctx context.Context, in *Settings) (*Settings, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, in)
}

// ReferralPercent returns the sponsor bonus percentage applied to each
// commission (e.g. 10 means 10%).
func (s *Service) ReferralPercent(ctx context.Context) (float64, error) {
	cur, err := s.store.Get(ctx)
	if err != nil {
		return 0, err
	}
	return cur.PercentageOfSponsors, nil
}

// RegistrationBonus returns the fallback signup bonus in cents, used when the
// assigned pack does not define its own.
func (s *Service) RegistrationBonus(ctx context.Context) (int64, error) {
	cur, err := s.store.Get(ctx)
	if err != nil {
		return 0, err
	}
	cents, _ := money.Parse(cur.BonusWhenRegistering)
	return cents, nil
}

// MinimumBalance returns the fallback minimum balance (cents) required to
// submit reviews, used when the worker's pack does not define one.
func (s *Service) MinimumBalance(ctx context.Context) (int64, error) {
	cur, err := s.store.Get(ctx)
	if err != nil {
		return 0, err
	}
	cents, _ := money.Parse(cur.MinimumBalanceForSubmissions)
	return cents, nil
}

// Location resolves the configured reset timezone, falling back to the
// default when the stored name no longer loads.
func (s *Service) Location(ctx context.Context) *time.Location {
	cur, err := s.store.Get(ctx)
	if err != nil {
		cur = Defaults()
	}
	loc, err := time.LoadLocation(cur.Timezone)
	if err != nil {
		loc, _ = time.LoadLocation(Defaults().Timezone)
	}
	return loc
}

// TokenValidity returns the access-token lifetime.
func (s *Service) TokenValidity(ctx context.Context) time.Duration {
	cur, err := s.store.Get(ctx)
	if err != nil || cur.TokenValidityPeriodHours <= 0 {
		return time.Duration(Defaults().TokenValidityPeriodHours) * time.Hour
	}
	return time.Duration(cur.TokenValidityPeriodHours) * time.Hour
}

func validate(s *Settings) error {
	if s.PercentageOfSponsors < 0 || s.PercentageOfSponsors > 100 {
		return fmt.Errorf("%w: percentageOfSponsors must be within [0,100]", ErrInvalidSettings)
	}
	if _, ok := money.Parse(s.BonusWhenRegistering); !ok {
		return fmt.Errorf("%w: bonusWhenRegistering is not a valid amount", ErrInvalidSettings)
	}
	if _, ok := money.Parse(s.MinimumBalanceForSubmissions); !ok {
		return fmt.Errorf("%w: minimumBalanceForSubmissions is not a valid amount", ErrInvalidSettings)
	}
	if s.TokenValidityPeriodHours <= 0 {
		return fmt.Errorf("%w: tokenValidityPeriodHours must be positive", ErrInvalidSettings)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, s.Timezone)
		}
	}
	for _, hhmm := range []string{s.ServiceAvailabilityStartTime, s.ServiceAvailabilityEndTime} {
		if hhmm == "" {
			continue
		}
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("%w: availability time %q is not HH:MM", ErrInvalidSettings, hhmm)
		}
	}
	return nil
}
