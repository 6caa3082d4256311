package settings

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore keeps the singleton settings row in PostgreSQL. The table is
// constrained to a single row with id=1; Migrate seeds it with defaults so
// Get never misses on a fresh database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY DEFAULT 1,
			percentage_of_sponsors NUMERIC(6,2) NOT NULL DEFAULT 10,
			bonus_when_registering NUMERIC(12,2) NOT NULL DEFAULT 0,
			minimum_balance_for_submissions NUMERIC(12,2) NOT NULL DEFAULT 0,
			token_validity_period_hours INT NOT NULL DEFAULT 24,
			service_availability_start_time VARCHAR(5) NOT NULL DEFAULT '00:00',
			service_availability_end_time VARCHAR(5) NOT NULL DEFAULT '23:59',
			timezone VARCHAR(64) NOT NULL DEFAULT 'US/Eastern',
			whatsapp_contact TEXT NOT NULL DEFAULT '',
			telegram_contact TEXT NOT NULL DEFAULT '',
			telegram_username TEXT NOT NULL DEFAULT '',
			online_chat_url TEXT NOT NULL DEFAULT '',
			erc_address TEXT NOT NULL DEFAULT '',
			trc_address TEXT NOT NULL DEFAULT '',
			video_url TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_settings_singleton CHECK (id = 1)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to seed settings row: %w", err)
	}
	return nil
}

const settingsColumns = `percentage_of_sponsors, bonus_when_registering,
		minimum_balance_for_submissions, token_validity_period_hours,
		service_availability_start_time, service_availability_end_time,
		timezone, whatsapp_contact, telegram_contact, telegram_username,
		online_chat_url, erc_address, trc_address, video_url, updated_at`

func (s *PostgresStore) Get(ctx context.Context) (*Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+settingsColumns+`
		FROM settings
		WHERE id = 1
	`)

	var out Settings
	err := row.Scan(
		&out.PercentageOfSponsors, &out.BonusWhenRegistering,
		&out.MinimumBalanceForSubmissions, &out.TokenValidityPeriodHours,
		&out.ServiceAvailabilityStartTime, &out.ServiceAvailabilityEndTime,
		&out.Timezone, &out.WhatsappContact, &out.TelegramContact,
		&out.TelegramUsername, &out.OnlineChatURL, &out.ERCAddress,
		&out.TRCAddress, &out.VideoURL, &out.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) Update(ctx context.Context, in *Settings) (*Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE settings SET
			percentage_of_sponsors = $1,
			bonus_when_registering = $2::NUMERIC(12,2),
			minimum_balance_for_submissions = $3::NUMERIC(12,2),
			token_validity_period_hours = $4,
			service_availability_start_time = $5,
			service_availability_end_time = $6,
			timezone = $7,
			whatsapp_contact = $8,
			telegram_contact = $9,
			telegram_username = $10,
			online_chat_url = $11,
			erc_address = $12,
			trc_address = $13,
			video_url = $14,
			updated_at = NOW()
		WHERE id = 1
		RETURNING `+settingsColumns+`
	`,
		in.PercentageOfSponsors, in.BonusWhenRegistering,
		in.MinimumBalanceForSubmissions, in.TokenValidityPeriodHours,
		in.ServiceAvailabilityStartTime, in.ServiceAvailabilityEndTime,
		in.Timezone, in.WhatsappContact, in.TelegramContact,
		in.TelegramUsername, in.OnlineChatURL, in.ERCAddress,
		in.TRCAddress, in.VideoURL,
	)

	var out Settings
	err := row.Scan(
		&out.PercentageOfSponsors, &out.BonusWhenRegistering,
		&out.MinimumBalanceForSubmissions, &out.TokenValidityPeriodHours,
		&out.ServiceAvailabilityStartTime, &out.ServiceAvailabilityEndTime,
		&out.Timezone, &out.WhatsappContact, &out.TelegramContact,
		&out.TelegramUsername, &out.OnlineChatURL, &out.ERCAddress,
		&out.TRCAddress, &out.VideoURL, &out.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return &out, nil
}
