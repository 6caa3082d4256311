package holdband

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mbd888/trackrate/internal/idgen"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed hold band store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the hold_bands table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS hold_bands (
			id         VARCHAR(40) PRIMARY KEY,
			min_amount NUMERIC(12,2) NOT NULL,
			max_amount NUMERIC(12,2) NOT NULL,
			is_active  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT chk_band_range CHECK (min_amount > 0 AND max_amount >= min_amount)
		);
	`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Band, error) {
	b := &Band{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, min_amount, max_amount, is_active, created_at, updated_at
		FROM hold_bands WHERE id = $1
	`, id).Scan(&b.ID, &b.MinAmount, &b.MaxAmount, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBandNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Band, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, min_amount, max_amount, is_active, created_at, updated_at
		FROM hold_bands ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bands []*Band
	for rows.Next() {
		b := &Band{}
		if err := rows.Scan(&b.ID, &b.MinAmount, &b.MaxAmount, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

func (p *PostgresStore) Create(ctx context.Context, band *Band) error {
	if band.ID == "" {
		band.ID = idgen.WithPrefix("hba_")
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO hold_bands (id, min_amount, max_amount, is_active, created_at, updated_at)
		VALUES ($1, $2::NUMERIC(12,2), $3::NUMERIC(12,2), $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`, band.ID, band.MinAmount, band.MaxAmount, band.Active).Scan(&band.CreatedAt, &band.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hold band: %w", err)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, band *Band) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE hold_bands SET
			min_amount = $2::NUMERIC(12,2),
			max_amount = $3::NUMERIC(12,2),
			is_active  = $4,
			updated_at = NOW()
		WHERE id = $1
	`, band.ID, band.MinAmount, band.MaxAmount, band.Active)
	if err != nil {
		return fmt.Errorf("failed to update hold band: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBandNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM hold_bands WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hold band: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBandNotFound
	}
	return nil
}
