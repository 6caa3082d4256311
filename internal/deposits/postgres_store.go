package deposits

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mbd888/trackrate/internal/idgen"
)

// PostgresStore persists deposits in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS deposits (
			id VARCHAR(40) PRIMARY KEY,
			user_id VARCHAR(40) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(12,2) NOT NULL,
			method VARCHAR(10) NOT NULL DEFAULT 'transfer',
			reference TEXT NOT NULL DEFAULT '',
			session_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(10) NOT NULL DEFAULT 'Pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_deposit_amount CHECK (amount > 0),
			CONSTRAINT chk_deposit_status CHECK (status IN ('Pending', 'Confirmed', 'Rejected')),
			CONSTRAINT chk_deposit_method CHECK (method IN ('transfer', 'card'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deposits table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_deposits_user
		ON deposits(user_id, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deposits user index: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_deposits_review
		ON deposits(status, created_at DESC, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deposits review index: %w", err)
	}
	return nil
}

const depositColumns = "id, user_id, amount, method, reference, session_id, status, created_at, updated_at"

func (s *PostgresStore) Create(ctx context.Context, d *Deposit) (*Deposit, error) {
	out := *d
	out.ID = idgen.WithPrefix("dep_")

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO deposits (id, user_id, amount, method, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, out.ID, d.UserID, d.Amount, d.Method, d.Reference, d.Status).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Deposit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+depositColumns+` FROM deposits WHERE id = $1
	`, id)
	d, err := scanDeposit(row)
	if err == sql.ErrNoRows {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Deposit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+depositColumns+` FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()
	return scanDeposits(rows)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE 1=1`
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.Before.IsZero() {
		args = append(args, f.Before, f.BeforeID)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()
	return scanDeposits(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id, status string) (*Deposit, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE deposits
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+depositColumns+`
	`, id, status)
	d, err := scanDeposit(row)
	if err == sql.ErrNoRows {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update deposit status: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) SetSession(ctx context.Context, id, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deposits
		SET session_id = $2, updated_at = NOW()
		WHERE id = $1
	`, id, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set deposit session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrDepositNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeposit(row rowScanner) (*Deposit, error) {
	var d Deposit
	err := row.Scan(&d.ID, &d.UserID, &d.Amount, &d.Method, &d.Reference, &d.SessionID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeposits(rows *sql.Rows) ([]*Deposit, error) {
	var out []*Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
