package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mbd888/trackrate/internal/idgen"
	"github.com/mbd888/trackrate/internal/money"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the users, invitations, and invitation_codes tables.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                 VARCHAR(40) PRIMARY KEY,
			username           TEXT NOT NULL UNIQUE,
			email              TEXT NOT NULL UNIQUE,
			phone              TEXT NOT NULL UNIQUE,
			first_name         TEXT NOT NULL DEFAULT '',
			last_name          TEXT NOT NULL DEFAULT '',
			gender             TEXT NOT NULL DEFAULT '',
			referral_code      TEXT NOT NULL UNIQUE,
			profile_picture    TEXT NOT NULL DEFAULT '',
			password_hash      TEXT NOT NULL,
			transactional_password_hash TEXT NOT NULL,
			is_staff           BOOLEAN NOT NULL DEFAULT FALSE,
			is_active          BOOLEAN NOT NULL DEFAULT TRUE,
			submissions_today  INT NOT NULL DEFAULT 0,
			sets_today         INT NOT NULL DEFAULT 0,
			today_profit       NUMERIC(12,2) NOT NULL DEFAULT 0,
			referral_bonus     NUMERIC(12,2) NOT NULL DEFAULT 0,
			min_balance_waived BOOLEAN NOT NULL DEFAULT FALSE,
			reg_bonus_added    BOOLEAN NOT NULL DEFAULT FALSE,
			session_id_user    TEXT NOT NULL DEFAULT '',
			session_id_admin   TEXT NOT NULL DEFAULT '',
			last_connection    TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_users_counters CHECK (submissions_today >= 0 AND sets_today >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at DESC, id DESC);

		CREATE TABLE IF NOT EXISTS invitations (
			id          VARCHAR(40) PRIMARY KEY,
			referrer_id VARCHAR(40) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			referee_id  VARCHAR(40) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			bonus_paid  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_invitations_referee UNIQUE (referee_id)
		);

		CREATE INDEX IF NOT EXISTS idx_invitations_referrer ON invitations(referrer_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS invitation_codes (
			id         VARCHAR(40) PRIMARY KEY,
			code       TEXT NOT NULL UNIQUE,
			is_used    BOOLEAN NOT NULL DEFAULT FALSE,
			created_by VARCHAR(40) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

const userColumns = `id, username, email, phone, first_name, last_name, gender,
	referral_code, profile_picture, password_hash, transactional_password_hash,
	is_staff, is_active, submissions_today, sets_today, today_profit, referral_bonus,
	min_balance_waived, reg_bonus_added, session_id_user, session_id_admin,
	last_connection, created_at`

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = idgen.WithPrefix("usr_")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, phone, first_name, last_name, gender,
			referral_code, profile_picture, password_hash, transactional_password_hash,
			is_staff, is_active, today_profit, referral_bonus, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14::NUMERIC(12,2), $15::NUMERIC(12,2), NOW())
	`, u.ID, u.Username, u.Email, u.Phone, u.FirstName, u.LastName, u.Gender,
		u.ReferralCode, u.ProfilePicture, u.PasswordHash, u.TransactionalPasswordHash,
		u.IsStaff, u.Active, zeroIfEmpty(u.TodayProfit), zeroIfEmpty(u.ReferralBonus))
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (p *PostgresStore) GetByUsernameOrEmail(ctx context.Context, handle string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = $1 OR email = LOWER($1)
	`, handle)
	return scanUser(row)
}

func (p *PostgresStore) GetByReferralCode(ctx context.Context, code string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
	return scanUser(row)
}

func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	var lastConn interface{}
	if !u.LastConnection.IsZero() {
		lastConn = u.LastConnection
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET
			username = $2, email = $3, phone = $4, first_name = $5, last_name = $6,
			gender = $7, profile_picture = $8, password_hash = $9,
			transactional_password_hash = $10, is_staff = $11, is_active = $12,
			min_balance_waived = $13, reg_bonus_added = $14, last_connection = $15
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.Phone, u.FirstName, u.LastName,
		u.Gender, u.ProfilePicture, u.PasswordHash,
		u.TransactionalPasswordHash, u.IsStaff, u.Active,
		u.MinBalanceWaived, u.RegBonusAdded, lastConn)
	if err != nil {
		return mapUniqueViolation(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, f Filter) ([]*User, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	n := 1

	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d)", n, n))
		args = append(args, "%"+f.Search+"%")
		n++
	}
	if f.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", n))
		args = append(args, *f.Active)
		n++
	}
	if f.Staff != nil {
		conditions = append(conditions, fmt.Sprintf("is_staff = $%d", n))
		args = append(args, *f.Staff)
		n++
	}
	if !f.Before.IsZero() {
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", n, n+1))
		args = append(args, f.Before, f.BeforeID)
		n += 2
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, n)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) IncrementSubmissions(ctx context.Context, id string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		UPDATE users SET submissions_today = submissions_today + 1
		WHERE id = $1 RETURNING submissions_today
	`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment submissions: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) IncrementSets(ctx context.Context, id string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		UPDATE users SET sets_today = sets_today + 1
		WHERE id = $1 RETURNING sets_today
	`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment sets: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) AddTodayProfit(ctx context.Context, id string, cents int64) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET today_profit = today_profit + $2::NUMERIC(12,2) WHERE id = $1
	`, id, money.Format(cents))
	if err != nil {
		return fmt.Errorf("failed to add today profit: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) SetTodayProfit(ctx context.Context, id string, cents int64) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET today_profit = $2::NUMERIC(12,2) WHERE id = $1
	`, id, money.Format(cents))
	if err != nil {
		return fmt.Errorf("failed to set today profit: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) SetDailyCounters(ctx context.Context, id string, submissions, sets int) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET submissions_today = $2, sets_today = $3 WHERE id = $1
	`, id, submissions, sets)
	if err != nil {
		return fmt.Errorf("failed to set daily counters: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) AdjustReferralBonus(ctx context.Context, id string, delta int64) (int64, error) {
	var totalStr string
	err := p.db.QueryRowContext(ctx, `
		UPDATE users SET referral_bonus = referral_bonus + $2::NUMERIC(12,2)
		WHERE id = $1 RETURNING referral_bonus
	`, id, money.Format(delta)).Scan(&totalStr)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust referral bonus: %w", err)
	}
	total, _ := money.Parse(totalStr)
	return total, nil
}

// ResetDaily runs both reset branches in one transaction so a reset pass
// is atomic: preserved users (unplayed special pending) keep their
// submission count and profit, everyone else starts the day from zero.
func (p *PostgresStore) ResetDaily(ctx context.Context, preserve []string) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	ids := pq.Array(preserve)
	kept, err := tx.ExecContext(ctx, `
		UPDATE users SET sets_today = 0 WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to reset preserved users: %w", err)
	}
	reset, err := tx.ExecContext(ctx, `
		UPDATE users SET submissions_today = 0, today_profit = 0, sets_today = 0
		WHERE NOT (id = ANY($1))
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to reset users: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	a, _ := kept.RowsAffected()
	b, _ := reset.RowsAffected()
	return int(a + b), nil
}

func (p *PostgresStore) SetSession(ctx context.Context, id, surface, sessionID string) error {
	column := "session_id_user"
	if surface == SurfaceAdmin {
		column = "session_id_admin"
	}
	result, err := p.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = $2 WHERE id = $1`, column), id, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) TouchLastConnection(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE users SET last_connection = NOW() WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) CountWorkers(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_staff = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count workers: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) LoggedInBetween(ctx context.Context, since, until time.Time) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE last_connection >= $1 AND last_connection < $2
		ORDER BY last_connection DESC
	`, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list logins: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) RegistrationsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM created_at AT TIME ZONE $2)::INT, COUNT(*)
		FROM users
		WHERE is_staff = FALSE AND EXTRACT(YEAR FROM created_at AT TIME ZONE $2)::INT = $1
		GROUP BY 1
	`, year, loc.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count registrations by month: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var month, n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, fmt.Errorf("failed to scan registration bucket: %w", err)
		}
		counts[month] = n
	}
	return counts, rows.Err()
}

func (p *PostgresStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if inv.ID == "" {
		inv.ID = idgen.WithPrefix("inv_")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invitations (id, referrer_id, referee_id, bonus_paid, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, inv.ID, inv.ReferrerID, inv.RefereeID, inv.BonusPaid)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (p *PostgresStore) InvitationByReferee(ctx context.Context, refereeID string) (*Invitation, error) {
	inv := &Invitation{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, referrer_id, referee_id, bonus_paid, created_at
		FROM invitations WHERE referee_id = $1
	`, refereeID).Scan(&inv.ID, &inv.ReferrerID, &inv.RefereeID, &inv.BonusPaid, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (p *PostgresStore) InvitationsByReferrer(ctx context.Context, referrerID string) ([]*Invitation, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, referrer_id, referee_id, bonus_paid, created_at
		FROM invitations WHERE referrer_id = $1
		ORDER BY created_at DESC
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var out []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		if err := rows.Scan(&inv.ID, &inv.ReferrerID, &inv.RefereeID, &inv.BonusPaid, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *PostgresStore) MarkInvitationBonusPaid(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE invitations SET bonus_paid = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark invitation bonus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

func (p *PostgresStore) CreateInvitationCode(ctx context.Context, code *InvitationCode) error {
	if code.ID == "" {
		code.ID = idgen.WithPrefix("icd_")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invitation_codes (id, code, is_used, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, code.ID, code.Code, code.Used, code.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create invitation code: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetInvitationCode(ctx context.Context, code string) (*InvitationCode, error) {
	ic := &InvitationCode{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, code, is_used, created_by, created_at
		FROM invitation_codes WHERE code = $1
	`, code).Scan(&ic.ID, &ic.Code, &ic.Used, &ic.CreatedBy, &ic.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return ic, nil
}

// ConsumeInvitationCode flips is_used exactly once; a second consumer
// gets ErrInvitationUsed.
func (p *PostgresStore) ConsumeInvitationCode(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE invitation_codes SET is_used = TRUE WHERE id = $1 AND is_used = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("failed to consume invitation code: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvitationUsed
	}
	return nil
}

func (p *PostgresStore) ListInvitationCodes(ctx context.Context) ([]*InvitationCode, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, code, is_used, created_by, created_at
		FROM invitation_codes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitation codes: %w", err)
	}
	defer rows.Close()

	var out []*InvitationCode
	for rows.Next() {
		ic := &InvitationCode{}
		if err := rows.Scan(&ic.ID, &ic.Code, &ic.Used, &ic.CreatedBy, &ic.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var lastConn sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.FirstName, &u.LastName,
		&u.Gender, &u.ReferralCode, &u.ProfilePicture, &u.PasswordHash,
		&u.TransactionalPasswordHash, &u.IsStaff, &u.Active,
		&u.SubmissionsToday, &u.SetsToday, &u.TodayProfit, &u.ReferralBonus,
		&u.MinBalanceWaived, &u.RegBonusAdded, &u.SessionIDUser, &u.SessionIDAdmin,
		&lastConn, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastConn.Valid {
		u.LastConnection = lastConn.Time
	}
	return u, nil
}

// mapUniqueViolation turns Postgres unique-constraint errors into the
// field-specific sentinel errors signup reports.
func mapUniqueViolation(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return err
	}
	switch {
	case strings.Contains(pqErr.Constraint, "username"):
		return ErrUsernameTaken
	case strings.Contains(pqErr.Constraint, "email"):
		return ErrEmailTaken
	case strings.Contains(pqErr.Constraint, "phone"):
		return ErrPhoneTaken
	}
	return err
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0.00"
	}
	return s
}
