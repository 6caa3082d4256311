package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// PostgresStore persists notifications and admin logs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(40) PRIMARY KEY,
			user_id VARCHAR(40),
			title VARCHAR(255) NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			kind VARCHAR(10) NOT NULL DEFAULT 'user',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_notification_kind CHECK (kind IN ('user', 'admin'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications(user_id, is_read, created_at DESC)
		WHERE kind = 'user'
	`)
	if err != nil {
		return fmt.Errorf("failed to create notifications index: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS admin_logs (
			id VARCHAR(40) PRIMARY KEY,
			actor_id VARCHAR(40),
			description TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create admin_logs table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_admin_logs_created
		ON admin_logs(created_at DESC, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create admin_logs index: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *Notification) (*Notification, error) {
	out := *n
	out.ID = idgen.WithPrefix("ntf_")

	var userID interface{}
	if n.UserID != "" {
		userID = n.UserID
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, kind)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, out.ID, userID, n.Title, n.Message, n.Kind).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) ListUserNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, kind, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND kind = 'user'
		ORDER BY is_read ASC, created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PostgresStore) ListAdminNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, kind, is_read, created_at
		FROM notifications
		WHERE kind = 'admin'
		ORDER BY is_read ASC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2 AND kind = 'user'
		RETURNING id, user_id, title, message, kind, is_read, created_at
	`, id, userID)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkAllUserRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND kind = 'user' AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) MarkAllAdminRead(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE kind = 'admin' AND is_read = FALSE
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark admin notifications read: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND kind = 'user' AND is_read = FALSE
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateLog(ctx context.Context, l *AdminLog) (*AdminLog, error) {
	out := *l
	out.ID = idgen.WithPrefix("log_")

	var actorID interface{}
	if l.ActorID != "" {
		actorID = l.ActorID
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_logs (id, actor_id, description, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, out.ID, actorID, l.Description, l.Reason).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin log: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, before time.Time, beforeID string, limit int) ([]*AdminLog, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if before.IsZero() {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, actor_id, description, reason, created_at
			FROM admin_logs
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, actor_id, description, reason, created_at
			FROM admin_logs
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, before, beforeID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list admin logs: %w", err)
	}
	defer rows.Close()

	var out []*AdminLog
	for rows.Next() {
		var (
			l       AdminLog
			actorID sql.NullString
		)
		if err := rows.Scan(&l.ID, &actorID, &l.Description, &l.Reason, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin log: %w", err)
		}
		l.ActorID = actorID.String
		out = append(out, &l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n      Notification
		userID sql.NullString
	)
	err := row.Scan(&n.ID, &userID, &n.Title, &n.Message, &n.Kind, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.UserID = userID.String
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]*Notification, error) {
	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
