package wallet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mbd888/trackrate/internal/money"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed wallet store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the wallets table. The CHECK constraints carry the two
// wallet invariants into the database: on_hold never negative, and balance
// and on_hold never both positive.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id      VARCHAR(40) PRIMARY KEY,
			balance      NUMERIC(12,2) NOT NULL DEFAULT 0,
			on_hold      NUMERIC(12,2) NOT NULL DEFAULT 0,
			commission   NUMERIC(12,2) NOT NULL DEFAULT 0,
			salary       NUMERIC(12,2) NOT NULL DEFAULT 0,
			credit_score NUMERIC(5,2)  NOT NULL DEFAULT 100,
			pack_id      VARCHAR(40),
			created_at   TIMESTAMPTZ DEFAULT NOW(),
			updated_at   TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT chk_on_hold_nonneg CHECK (on_hold >= 0),
			CONSTRAINT chk_balance_hold_excl CHECK (NOT (balance > 0 AND on_hold > 0))
		);

		CREATE INDEX IF NOT EXISTS idx_wallets_pack ON wallets(pack_id);
	`)
	return err
}

// Get retrieves a user's wallet.
func (p *PostgresStore) Get(ctx context.Context, userID string) (*Wallet, error) {
	w := &Wallet{UserID: userID}
	var packID sql.NullString
	var score string

	err := p.db.QueryRowContext(ctx, `
		SELECT balance, on_hold, commission, salary, credit_score, pack_id, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.Balance, &w.OnHold, &w.Commission, &w.Salary, &score, &packID, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	w.PackID = packID.String
	w.CreditScore = parseScore(score)
	return w, nil
}

// Create provisions a zero wallet and runs pack auto-assignment.
func (p *PostgresStore) Create(ctx context.Context, userID string) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrWalletExists
	}

	if err := p.ensurePack(ctx, tx, userID, 0); err != nil {
		return nil, err
	}
	return p.commitAndGet(ctx, tx, userID)
}

// Credit adds funds using the sequential rule: clear any deficit first,
// then merge held funds back once the balance is non-negative.
func (p *PostgresStore) Credit(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return p.mutate(ctx, userID, func(balance, onHold int64) (int64, int64, error) {
		b, h := applyCredit(balance, onHold, amount)
		return b, h, nil
	})
}

// Debit removes funds, going negative and reserving the full amount when
// the balance cannot cover it. The insolvent path requires no prior hold.
func (p *PostgresStore) Debit(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return p.mutate(ctx, userID, func(balance, onHold int64) (int64, int64, error) {
		if balance < amount && onHold > 0 {
			return 0, 0, ErrHoldOutstanding
		}
		b, h := applyDebit(balance, onHold, amount)
		return b, h, nil
	})
}

// CreditCommission adds to the commission running total.
func (p *PostgresStore) CreditCommission(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return p.adjustColumn(ctx, userID, "commission", amount)
}

// DebitCommission subtracts from the commission running total.
func (p *PostgresStore) DebitCommission(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return p.adjustColumn(ctx, userID, "commission", -amount)
}

// AddHold reserves funds directly. Fails while the balance is positive.
func (p *PostgresStore) AddHold(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return p.mutate(ctx, userID, func(balance, onHold int64) (int64, int64, error) {
		if balance > 0 {
			return 0, 0, ErrHoldConflict
		}
		return balance, onHold + amount, nil
	})
}

// ReleaseHold transfers the entire held amount back to the balance.
func (p *PostgresStore) ReleaseHold(ctx context.Context, userID string) (*Wallet, error) {
	return p.mutate(ctx, userID, func(balance, onHold int64) (int64, int64, error) {
		if onHold <= 0 {
			return 0, 0, ErrNothingHeld
		}
		return balance + onHold, 0, nil
	})
}

// Adjust applies a signed delta to the balance. A positive delta that
// lifts the balance out of deficit merges the hold like a credit would.
func (p *PostgresStore) Adjust(ctx context.Context, userID string, delta int64) (*Wallet, error) {
	return p.mutate(ctx, userID, func(balance, onHold int64) (int64, int64, error) {
		if delta > 0 {
			b, h := applyCredit(balance, onHold, delta)
			return b, h, nil
		}
		return balance + delta, onHold, nil
	})
}

// SetSalary replaces the salary total and moves the difference through the balance.
func (p *PostgresStore) SetSalary(ctx context.Context, userID string, salary int64) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balStr, holdStr, salStr string
	err = tx.QueryRowContext(ctx, `
		SELECT balance, on_hold, salary FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balStr, &holdStr, &salStr)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	balance, _ := money.Parse(balStr)
	onHold, _ := money.Parse(holdStr)
	oldSalary, _ := money.Parse(salStr)

	delta := salary - oldSalary
	if delta > 0 {
		balance, onHold = applyCredit(balance, onHold, delta)
	} else {
		balance += delta
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance    = $2::NUMERIC(12,2),
			on_hold    = $3::NUMERIC(12,2),
			salary     = $4::NUMERIC(12,2),
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, money.Format(balance), money.Format(onHold), money.Format(salary))
	if err != nil {
		return nil, fmt.Errorf("failed to update salary: %w", err)
	}

	if err := p.ensurePack(ctx, tx, userID, balance); err != nil {
		return nil, err
	}
	return p.commitAndGet(ctx, tx, userID)
}

// SetCreditScore sets the 0-100 display score.
func (p *PostgresStore) SetCreditScore(ctx context.Context, userID string, score float64) (*Wallet, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET credit_score = $2::NUMERIC(5,2), updated_at = NOW()
		WHERE user_id = $1
	`, userID, fmt.Sprintf("%.2f", score))
	if err != nil {
		return nil, fmt.Errorf("failed to update credit score: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrWalletNotFound
	}
	return p.Get(ctx, userID)
}

// SetPack pins a wallet to a pack.
func (p *PostgresStore) SetPack(ctx context.Context, userID, packID string) (*Wallet, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET pack_id = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, packID)
	if err != nil {
		return nil, fmt.Errorf("failed to set pack: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrWalletNotFound
	}
	return p.Get(ctx, userID)
}

// ZeroAllSalaries clears every non-zero salary. Used by the daily reset.
func (p *PostgresStore) ZeroAllSalaries(ctx context.Context) (int, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET salary = 0, updated_at = NOW() WHERE salary <> 0
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to zero salaries: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ReassignPack re-runs pack selection for every wallet on the given pack.
func (p *PostgresStore) ReassignPack(ctx context.Context, packID string) (int, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, balance FROM wallets WHERE pack_id = $1 FOR UPDATE
	`, packID)
	if err != nil {
		return 0, fmt.Errorf("failed to list wallets on pack: %w", err)
	}

	type target struct {
		userID  string
		balance int64
	}
	var targets []target
	for rows.Next() {
		var id, balStr string
		if err := rows.Scan(&id, &balStr); err != nil {
			rows.Close()
			return 0, err
		}
		bal, _ := money.Parse(balStr)
		targets = append(targets, target{userID: id, balance: bal})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, t := range targets {
		newPack, err := p.pickPack(ctx, tx, t.balance)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE wallets SET pack_id = $2, updated_at = NOW() WHERE user_id = $1
		`, t.userID, nullable(newPack))
		if err != nil {
			return 0, fmt.Errorf("failed to reassign pack: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(targets), nil
}

// mutate locks the wallet row, applies fn to the (balance, on_hold) pair,
// persists the result and re-checks pack assignment, all in one
// serializable transaction.
func (p *PostgresStore) mutate(ctx context.Context, userID string, fn func(balance, onHold int64) (int64, int64, error)) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balStr, holdStr string
	err = tx.QueryRowContext(ctx, `
		SELECT balance, on_hold FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balStr, &holdStr)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	balance, _ := money.Parse(balStr)
	onHold, _ := money.Parse(holdStr)

	newBalance, newHold, err := fn(balance, onHold)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance    = $2::NUMERIC(12,2),
			on_hold    = $3::NUMERIC(12,2),
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, money.Format(newBalance), money.Format(newHold))
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	if err := p.ensurePack(ctx, tx, userID, newBalance); err != nil {
		return nil, err
	}
	return p.commitAndGet(ctx, tx, userID)
}

// adjustColumn applies a signed delta to a single NUMERIC column.
func (p *PostgresStore) adjustColumn(ctx context.Context, userID, column string, delta int64) (*Wallet, error) {
	query := fmt.Sprintf(`
		UPDATE wallets SET %s = %s + $2::NUMERIC(12,2), updated_at = NOW()
		WHERE user_id = $1
	`, column, column)
	result, err := p.db.ExecContext(ctx, query, userID, money.Format(delta))
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", column, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrWalletNotFound
	}
	return p.Get(ctx, userID)
}

// ensurePack re-runs auto-assignment when the wallet has no pack or an
// inactive one. Runs inside the caller's transaction.
func (p *PostgresStore) ensurePack(ctx context.Context, tx *sql.Tx, userID string, balance int64) error {
	var packID sql.NullString
	var active sql.NullBool
	err := tx.QueryRowContext(ctx, `
		SELECT w.pack_id, p.is_active
		FROM wallets w LEFT JOIN packs p ON p.id = w.pack_id
		WHERE w.user_id = $1
	`, userID).Scan(&packID, &active)
	if err != nil {
		return fmt.Errorf("failed to check pack: %w", err)
	}
	if packID.Valid && active.Valid && active.Bool {
		return nil
	}

	newPack, err := p.pickPack(ctx, tx, balance)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET pack_id = $2 WHERE user_id = $1
	`, userID, nullable(newPack))
	if err != nil {
		return fmt.Errorf("failed to assign pack: %w", err)
	}
	return nil
}

// pickPack selects the active pack with the greatest usd_value within the
// balance, else the cheapest active pack. Empty string when none exist.
func (p *PostgresStore) pickPack(ctx context.Context, tx *sql.Tx, balance int64) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM packs
		WHERE is_active = TRUE AND usd_value <= $1::NUMERIC(12,2)
		ORDER BY usd_value DESC LIMIT 1
	`, money.Format(balance)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to pick pack: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		SELECT id FROM packs WHERE is_active = TRUE ORDER BY usd_value ASC LIMIT 1
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to pick fallback pack: %w", err)
	}
	return id, nil
}

// commitAndGet commits the transaction and reads back the post-state.
func (p *PostgresStore) commitAndGet(ctx context.Context, tx *sql.Tx, userID string) (*Wallet, error) {
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p.Get(ctx, userID)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseScore(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}
