package withdrawals

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// PostgresStore persists withdrawals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS withdrawals (
			id VARCHAR(40) PRIMARY KEY,
			user_id VARCHAR(40) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(12,2) NOT NULL,
			address VARCHAR(64) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'Pending',
			is_reviewed BOOLEAN NOT NULL DEFAULT FALSE,
			tx_hash VARCHAR(80) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_withdrawal_amount CHECK (amount > 0),
			CONSTRAINT chk_withdrawal_status CHECK (status IN ('Pending', 'Processed', 'Rejected'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create withdrawals table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_withdrawals_user
		ON withdrawals(user_id, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create withdrawals user index: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_withdrawals_review
		ON withdrawals(status, created_at DESC, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create withdrawals review index: %w", err)
	}
	return nil
}

const withdrawalColumns = "id, user_id, amount, address, status, is_reviewed, tx_hash, created_at, updated_at"

func (s *PostgresStore) Create(ctx context.Context, w *Withdrawal) (*Withdrawal, error) {
	out := *w
	out.ID = idgen.WithPrefix("wd_")

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, address, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, out.ID, w.UserID, w.Amount, w.Address, w.Status).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Withdrawal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1
	`, id)
	w, err := scanWithdrawal(row)
	if err == sql.ErrNoRows {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE 1=1`
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
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

// MarkReviewed flips an unreviewed withdrawal into its final status.
// The is_reviewed guard runs inside the UPDATE so concurrent reviewers
// cannot both win.
func (s *PostgresStore) MarkReviewed(ctx context.Context, id, status string) (*Withdrawal, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE withdrawals
		SET status = $2, is_reviewed = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_reviewed = FALSE
		RETURNING `+withdrawalColumns+`
	`, id, status)
	w, err := scanWithdrawal(row)
	if err == sql.ErrNoRows {
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return nil, ErrAlreadyReviewed
		}
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark withdrawal reviewed: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) SetTxHash(ctx context.Context, id, hash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE withdrawals
		SET tx_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to set withdrawal tx hash: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

func (s *PostgresStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM withdrawals
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWithdrawal(row rowScanner) (*Withdrawal, error) {
	var w Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Address, &w.Status, &w.IsReviewed, &w.TxHash, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWithdrawals(rows *sql.Rows) ([]*Withdrawal, error) {
	var out []*Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
