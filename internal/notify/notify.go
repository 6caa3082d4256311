// Package notify is the notification sink: user notifications, admin
// notifications, and the admin audit log.
//
// Producers (the task engine, deposit/withdrawal review, admin mutations)
// write through the Service; the HTTP layer reads and marks. Notification
// rows are ordered unread-first then newest-first, matching how workers see
// them. Audit log writes never fail the caller: Log swallows storage errors
// after recording them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Notification kinds.
const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// Errors
var (
	ErrNotificationNotFound = errors.New("notify: notification not found")
	ErrEmptyMessage         = errors.New("notify: message must not be empty")
)

// Notification is a single message for a worker (KindUser, UserID set) or
// for the admin desk (KindAdmin, UserID empty).
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminLog records an admin-surface action for audit. ActorID is empty for
// system-initiated entries.
type AdminLog struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actorId,omitempty"`
	Description string    `json:"description"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists notifications and audit log entries.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) (*Notification, error)
	ListUserNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error)
	ListAdminNotifications(ctx context.Context, limit int) ([]*Notification, error)
	// MarkRead flips one of the user's notifications; ErrNotificationNotFound
	// when the id does not belong to the user.
	MarkRead(ctx context.Context, userID, id string) (*Notification, error)
	MarkAllUserRead(ctx context.Context, userID string) (int, error)
	MarkAllAdminRead(ctx context.Context) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)

	CreateLog(ctx context.Context, l *AdminLog) (*AdminLog, error)
	// ListLogs returns up to limit+1 entries older than the cursor position,
	// newest first.
	ListLogs(ctx context.Context, before time.Time, beforeID string, limit int) ([]*AdminLog, error)
}

// Publisher pushes a freshly created user notification to connected clients.
// The realtime hub implements this; a nil publisher disables the push.
type Publisher interface {
	PublishUser(userID string, n *Notification)
}

// Service is the write/read facade over the Store.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger}
}

// NotifyUser records a notification addressed to one worker and pushes it to
// their live stream when a publisher is attached.
func (s *Service) NotifyUser(ctx context.Context, userID, title, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	n, err := s.store.CreateNotification(ctx, &Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Kind:    KindUser,
	})
	if err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.PublishUser(userID, n)
	}
	NotificationsTotal.WithLabelValues(KindUser).Inc()
	return nil
}

// NotifyAdmin records a notification for the admin desk.
func (s *Service) NotifyAdmin(ctx context.Context, title, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	_, err := s.store.CreateNotification(ctx, &Notification{
		Title:   title,
		Message: message,
		Kind:    KindAdmin,
	})
	if err != nil {
		return err
	}
	NotificationsTotal.WithLabelValues(KindAdmin).Inc()
	return nil
}

// Log appends an audit entry. Failures are logged and swallowed so audit
// writes never abort the action being audited.
func (s *Service) Log(ctx context.Context, actorID, description, reason string) {
	if strings.TrimSpace(description) == "" {
		return
	}
	_, err := s.store.CreateLog(ctx, &AdminLog{
		ActorID:     actorID,
		Description: description,
		Reason:      reason,
	})
	if err != nil {
		s.logger.Warn("admin log write failed",
			"actor", actorID,
			"description", description,
			"error", err)
		return
	}
	AdminLogsTotal.Inc()
}

func (s *Service) ListUser(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	return s.store.ListUserNotifications(ctx, userID, limit)
}

func (s *Service) ListAdmin(ctx context.Context, limit int) ([]*Notification, error) {
	return s.store.ListAdminNotifications(ctx, limit)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) (*Notification, error) {
	return s.store.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllUserRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllUserRead(ctx, userID)
}

func (s *Service) MarkAllAdminRead(ctx context.Context) (int, error) {
	return s.store.MarkAllAdminRead(ctx)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *Service) ListLogs(ctx context.Context, before time.Time, beforeID string, limit int) ([]*AdminLog, error) {
	return s.store.ListLogs(ctx, before, beforeID, limit)
}
