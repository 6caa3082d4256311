package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mbd888/trackrate/internal/idgen"
	"github.com/mbd888/trackrate/internal/money"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed task store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tasks and task_products tables.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                    VARCHAR(40) PRIMARY KEY,
			user_id               VARCHAR(40) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount                NUMERIC(12,2) NOT NULL DEFAULT 0,
			commission            NUMERIC(12,2) NOT NULL DEFAULT 0,
			commission_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
			rating_no             TEXT NOT NULL DEFAULT '',
			game_number           INT NOT NULL DEFAULT 0,
			special_product       BOOLEAN NOT NULL DEFAULT FALSE,
			played                BOOLEAN NOT NULL DEFAULT FALSE,
			pending               BOOLEAN NOT NULL DEFAULT FALSE,
			is_active             BOOLEAN NOT NULL DEFAULT TRUE,
			hold_band_id          VARCHAR(40),
			rating_score          INT NOT NULL DEFAULT 0,
			comment               TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_tasks_rating CHECK (rating_score BETWEEN 0 AND 5)
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_user_queue
			ON tasks(user_id, played, is_active, special_product);
		CREATE INDEX IF NOT EXISTS idx_tasks_user_created
			ON tasks(user_id, created_at DESC, id DESC);

		CREATE TABLE IF NOT EXISTS task_products (
			task_id    VARCHAR(40) NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			product_id VARCHAR(40) NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			position   INT NOT NULL DEFAULT 0,
			PRIMARY KEY (task_id, product_id)
		);
	`)
	return err
}

const taskColumns = `id, user_id, amount, commission, commission_percentage,
	rating_no, game_number, special_product, played, pending, is_active,
	hold_band_id, rating_score, comment, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, t *Task) (*Task, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cp := cloneTask(t)
	if cp.ID == "" {
		cp.ID = idgen.WithPrefix("tsk_")
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO tasks (id, user_id, amount, commission, commission_percentage,
			rating_no, game_number, special_product, played, pending, is_active,
			hold_band_id, rating_score, comment)
		VALUES ($1, $2, $3::NUMERIC(12,2), $4::NUMERIC(12,2), $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, cp.ID, cp.UserID, zeroIfEmpty(cp.Amount), zeroIfEmpty(cp.Commission),
		cp.CommissionPercentage, cp.RatingNo, cp.GameNumber, cp.Special, cp.Played,
		cp.Pending, cp.Active, nullIfEmpty(cp.HoldBandID), cp.RatingScore, cp.Comment)
	if err := row.Scan(&cp.CreatedAt, &cp.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := insertProductLinks(ctx, tx, cp.ID, cp.ProductIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cp, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Task, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := p.attachProducts(ctx, []*Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresStore) Update(ctx context.Context, t *Task) (*Task, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cp := cloneTask(t)
	row := tx.QueryRowContext(ctx, `
		UPDATE tasks SET user_id = $2, amount = $3::NUMERIC(12,2),
			commission = $4::NUMERIC(12,2), commission_percentage = $5,
			rating_no = $6, game_number = $7, special_product = $8, played = $9,
			pending = $10, is_active = $11, hold_band_id = $12, rating_score = $13,
			comment = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, cp.ID, cp.UserID, zeroIfEmpty(cp.Amount), zeroIfEmpty(cp.Commission),
		cp.CommissionPercentage, cp.RatingNo, cp.GameNumber, cp.Special, cp.Played,
		cp.Pending, cp.Active, nullIfEmpty(cp.HoldBandID), cp.RatingScore, cp.Comment)
	if err := row.Scan(&cp.CreatedAt, &cp.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if len(cp.ProductIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_products WHERE task_id = $1`, cp.ID); err != nil {
			return nil, fmt.Errorf("failed to clear task products: %w", err)
		}
		if err := insertProductLinks(ctx, tx, cp.ID, cp.ProductIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cp, nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (p *PostgresStore) PendingSpecial(ctx context.Context, userID string) (*Task, error) {
	return p.firstTask(ctx, `user_id = $1 AND played = FALSE AND pending = TRUE
		AND is_active = TRUE AND special_product = TRUE`, userID)
}

func (p *PostgresStore) SpecialAtRank(ctx context.Context, userID string, rank int) (*Task, error) {
	return p.firstTask(ctx, `user_id = $1 AND played = FALSE AND is_active = TRUE
		AND special_product = TRUE AND game_number = $2`, userID, rank)
}

func (p *PostgresStore) PendingRegular(ctx context.Context, userID string) (*Task, error) {
	return p.firstTask(ctx, `user_id = $1 AND played = FALSE AND pending = TRUE
		AND is_active = TRUE AND special_product = FALSE`, userID)
}

func (p *PostgresStore) OldestUnplayedRegular(ctx context.Context, userID string) (*Task, error) {
	return p.firstTask(ctx, `user_id = $1 AND played = FALSE AND is_active = TRUE
		AND special_product = FALSE`, userID)
}

func (p *PostgresStore) UnplayedSpecialsAtRank(ctx context.Context, userID string, rank int, excludeID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE user_id = $1 AND special_product = TRUE AND played = FALSE
			AND is_active = TRUE AND game_number = $2 AND id <> $3
	`, userID, rank, excludeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count specials at rank: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) SeenProductIDs(ctx context.Context, userID string, since, until time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT tp.product_id
		FROM task_products tp
		JOIN tasks t ON t.id = tp.task_id
		WHERE t.user_id = $1 AND t.is_active = TRUE
			AND t.created_at >= $2 AND t.created_at < $3
	`, userID, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list seen products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PostgresStore) History(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []interface{}{userID}
	if !before.IsZero() {
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)+1, len(args)+2)
		args = append(args, before, beforeID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task history: %w", err)
	}
	defer rows.Close()
	return p.collectTasks(ctx, rows)
}

func (p *PostgresStore) ListSpecials(ctx context.Context) ([]*Task, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE special_product = TRUE
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list special tasks: %w", err)
	}
	defer rows.Close()
	return p.collectTasks(ctx, rows)
}

func (p *PostgresStore) UserIDsWithPendingSpecials(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM tasks
		WHERE special_product = TRUE AND pending = TRUE
			AND played = FALSE AND is_active = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with pending specials: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PostgresStore) CountPlayed(ctx context.Context, userID string, specialOnly bool) (int, error) {
	query := `
		SELECT COUNT(*) FROM tasks
		WHERE user_id = $1 AND played = TRUE AND is_active = TRUE`
	if specialOnly {
		query += ` AND special_product = TRUE`
	}
	var count int
	if err := p.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count played tasks: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) CountSubmissionsBetween(ctx context.Context, since, until time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE is_active = TRUE AND (played = TRUE OR pending = TRUE)
			AND updated_at >= $1 AND updated_at < $2
	`, since, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) SubmissionsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM updated_at AT TIME ZONE $2)::INT, COUNT(*)
		FROM tasks
		WHERE is_active = TRUE AND (played = TRUE OR pending = TRUE)
			AND EXTRACT(YEAR FROM updated_at AT TIME ZONE $2)::INT = $1
		GROUP BY 1
	`, year, loc.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions by month: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var month, n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, fmt.Errorf("failed to scan submission bucket: %w", err)
		}
		counts[month] = n
	}
	return counts, rows.Err()
}

func (p *PostgresStore) RatingNoExists(ctx context.Context, ratingNo string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE rating_no = $1)`, ratingNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rating number: %w", err)
	}
	return exists, nil
}

// firstTask runs a selection query ordered oldest first.
func (p *PostgresStore) firstTask(ctx context.Context, where string, args ...interface{}) (*Task, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE `+where+`
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, args...)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := p.attachProducts(ctx, []*Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresStore) collectTasks(ctx context.Context, rows *sql.Rows) ([]*Task, error) {
	var list []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachProducts(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachProducts loads album links for the given tasks in one query.
func (p *PostgresStore) attachProducts(ctx context.Context, list []*Task) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	byID := make(map[string]*Task, len(list))
	for i, t := range list {
		ids[i] = t.ID
		byID[t.ID] = t
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT task_id, product_id FROM task_products
		WHERE task_id = ANY($1)
		ORDER BY task_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load task products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, productID string
		if err := rows.Scan(&taskID, &productID); err != nil {
			return fmt.Errorf("failed to scan task product: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.ProductIDs = append(t.ProductIDs, productID)
		}
	}
	return rows.Err()
}

func insertProductLinks(ctx context.Context, tx *sql.Tx, taskID string, productIDs []string) error {
	for i, pid := range productIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_products (task_id, product_id, position)
			VALUES ($1, $2, $3)
		`, taskID, pid, i); err != nil {
			return fmt.Errorf("failed to link task product: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var holdBand sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Commission, &t.CommissionPercentage,
		&t.RatingNo, &t.GameNumber, &t.Special, &t.Played, &t.Pending, &t.Active,
		&holdBand, &t.RatingScore, &t.Comment, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.HoldBandID = holdBand.String
	return &t, nil
}

func zeroIfEmpty(amount string) string {
	if amount == "" {
		return money.Format(0)
	}
	return amount
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
