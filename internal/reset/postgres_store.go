package reset

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore keeps the tracker in PostgreSQL. The table is
// constrained to a single row with id=1; Migrate seeds it so ClaimReset
// always finds a row to lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS daily_reset_tracker (
			id INT PRIMARY KEY DEFAULT 1,
			last_reset_time TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			reset_interval_hours INT NOT NULL DEFAULT 24,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_reset_singleton CHECK (id = 1)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create daily reset tracker table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_reset_tracker (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to seed daily reset tracker: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context) (*Tracker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT last_reset_time, reset_interval_hours, updated_at
		FROM daily_reset_tracker
		WHERE id = 1
	`)

	var out Tracker
	if err := row.Scan(&out.LastResetTime, &out.ResetIntervalHours, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to get reset tracker: %w", err)
	}
	return &out, nil
}

// ClaimReset advances last_reset_time to boundary under a row lock, so
// concurrent instances crossing the same midnight serialize on the
// tracker row and exactly one of them runs the pass.
func (s *PostgresStore) ClaimReset(ctx context.Context, boundary time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var last time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT last_reset_time FROM daily_reset_tracker WHERE id = 1 FOR UPDATE
	`).Scan(&last)
	if err == sql.ErrNoRows {
		// Fresh database that never ran Migrate; seed and claim.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO daily_reset_tracker (id, last_reset_time) VALUES (1, $1)
			ON CONFLICT (id) DO NOTHING
		`, boundary.UTC())
		if err != nil {
			return false, fmt.Errorf("failed to seed reset tracker: %w", err)
		}
		inserted, _ := res.RowsAffected()
		if err := tx.Commit(); err != nil {
			return false, err
		}
		return inserted == 1, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock reset tracker: %w", err)
	}

	if !last.Before(boundary) {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE daily_reset_tracker SET last_reset_time = $1, updated_at = NOW() WHERE id = 1
	`, boundary.UTC()); err != nil {
		return false, fmt.Errorf("failed to stamp reset tracker: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) SetInterval(ctx context.Context, hours int) (*Tracker, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_reset_tracker (id, reset_interval_hours)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE
		SET reset_interval_hours = EXCLUDED.reset_interval_hours, updated_at = NOW()
		RETURNING last_reset_time, reset_interval_hours, updated_at
	`, hours)

	var out Tracker
	if err := row.Scan(&out.LastResetTime, &out.ResetIntervalHours, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update reset tracker: %w", err)
	}
	return &out, nil
}
