package packs

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

// NewPostgresStore creates a new PostgreSQL-backed pack store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the packs table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS packs (
			id                         VARCHAR(40) PRIMARY KEY,
			name                       VARCHAR(100) NOT NULL,
			usd_value                  NUMERIC(12,2) NOT NULL DEFAULT 0,
			daily_missions             INTEGER NOT NULL,
			number_of_sets             INTEGER NOT NULL DEFAULT 1,
			profit_percentage          NUMERIC(6,2) NOT NULL DEFAULT 0,
			special_product_percentage NUMERIC(6,2) NOT NULL DEFAULT 0,
			minimum_balance            NUMERIC(12,2),
			daily_withdrawals          INTEGER NOT NULL DEFAULT 1,
			payment_bonus_threshold    NUMERIC(12,2),
			payment_bonus              NUMERIC(12,2),
			short_description          TEXT,
			description                TEXT,
			icon                       TEXT,
			created_by                 VARCHAR(40),
			is_active                  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at                 TIMESTAMPTZ DEFAULT NOW(),
			updated_at                 TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT chk_pack_missions CHECK (daily_missions > 0),
			CONSTRAINT chk_pack_sets     CHECK (number_of_sets > 0)
		);

		CREATE INDEX IF NOT EXISTS idx_packs_active_value ON packs(is_active, usd_value);
	`)
	return err
}

const packColumns = `id, name, usd_value, daily_missions, number_of_sets,
	profit_percentage, special_product_percentage, minimum_balance,
	daily_withdrawals, payment_bonus_threshold, payment_bonus,
	short_description, description, icon, created_by, is_active,
	created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Pack, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+packColumns+` FROM packs WHERE id = $1
	`, id)
	pack, err := scanPack(row)
	if err == sql.ErrNoRows {
		return nil, ErrPackNotFound
	}
	if err != nil {
		return nil, err
	}
	return pack, nil
}

func (p *PostgresStore) List(ctx context.Context, activeOnly bool) ([]*Pack, error) {
	query := `SELECT ` + packColumns + ` FROM packs`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY usd_value ASC`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []*Pack
	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, rows.Err()
}

func (p *PostgresStore) Create(ctx context.Context, pack *Pack) error {
	if pack.ID == "" {
		pack.ID = idgen.WithPrefix("pck_")
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO packs (
			id, name, usd_value, daily_missions, number_of_sets,
			profit_percentage, special_product_percentage, minimum_balance,
			daily_withdrawals, payment_bonus_threshold, payment_bonus,
			short_description, description, icon, created_by, is_active,
			created_at, updated_at
		) VALUES (
			$1, $2, $3::NUMERIC(12,2), $4, $5,
			$6, $7, NULLIF($8, '')::NUMERIC(12,2),
			$9, NULLIF($10, '')::NUMERIC(12,2), NULLIF($11, '')::NUMERIC(12,2),
			$12, $13, $14, NULLIF($15, ''), $16,
			NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`, pack.ID, pack.Name, pack.USDValue, pack.DailyMissions, pack.NumberOfSets,
		pack.ProfitPercentage, pack.SpecialProductPercentage, pack.MinimumBalance,
		pack.DailyWithdrawals, pack.PaymentBonusThreshold, pack.PaymentBonus,
		pack.ShortDescription, pack.Description, pack.Icon, pack.CreatedBy, pack.Active,
	).Scan(&pack.CreatedAt, &pack.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pack: %w", err)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, pack *Pack) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE packs SET
			name                       = $2,
			usd_value                  = $3::NUMERIC(12,2),
			daily_missions             = $4,
			number_of_sets             = $5,
			profit_percentage          = $6,
			special_product_percentage = $7,
			minimum_balance            = NULLIF($8, '')::NUMERIC(12,2),
			daily_withdrawals          = $9,
			payment_bonus_threshold    = NULLIF($10, '')::NUMERIC(12,2),
			payment_bonus              = NULLIF($11, '')::NUMERIC(12,2),
			short_description          = $12,
			description                = $13,
			icon                       = $14,
			is_active                  = $15,
			updated_at                 = NOW()
		WHERE id = $1
	`, pack.ID, pack.Name, pack.USDValue, pack.DailyMissions, pack.NumberOfSets,
		pack.ProfitPercentage, pack.SpecialProductPercentage, pack.MinimumBalance,
		pack.DailyWithdrawals, pack.PaymentBonusThreshold, pack.PaymentBonus,
		pack.ShortDescription, pack.Description, pack.Icon, pack.Active)
	if err != nil {
		return fmt.Errorf("failed to update pack: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrPackNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM packs WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pack: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrPackNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (*Pack, error) {
	p := &Pack{}
	var minBalance, bonusThreshold, bonus, shortDesc, desc, icon, createdBy sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.USDValue, &p.DailyMissions, &p.NumberOfSets,
		&p.ProfitPercentage, &p.SpecialProductPercentage, &minBalance,
		&p.DailyWithdrawals, &bonusThreshold, &bonus,
		&shortDesc, &desc, &icon, &createdBy, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.MinimumBalance = minBalance.String
	p.PaymentBonusThreshold = bonusThreshold.String
	p.PaymentBonus = bonus.String
	p.ShortDescription = shortDesc.String
	p.Description = desc.String
	p.Icon = icon.String
	p.CreatedBy = createdBy.String
	return p, nil
}
