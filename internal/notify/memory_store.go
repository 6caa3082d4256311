package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	logs          []*AdminLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notifications: make(map[string]*Notification)}
}

func (s *MemoryStore) CreateNotification(ctx context.Context, n *Notification) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	stored.ID = idgen.WithPrefix("ntf_")
	stored.CreatedAt = time.Now()
	s.notifications[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) ListUserNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Notification
	for _, n := range s.notifications {
		if n.Kind == KindUser && n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sortNotifications(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListAdminNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Notification
	for _, n := range s.notifications {
		if n.Kind == KindAdmin {
			cp := *n
			out = append(out, &cp)
		}
	}
	sortNotifications(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, userID, id string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.Kind != KindUser || n.UserID != userID {
		return nil, ErrNotificationNotFound
	}
	n.Read = true
	out := *n
	return &out, nil
}

func (s *MemoryStore) MarkAllUserRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.Kind == KindUser && n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkAllAdminRead(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.Kind == KindAdmin && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.Kind == KindUser && n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateLog(ctx context.Context, l *AdminLog) (*AdminLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *l
	stored.ID = idgen.WithPrefix("log_")
	stored.CreatedAt = time.Now()
	s.logs = append(s.logs, &stored)

	out := stored
	return &out, nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, before time.Time, beforeID string, limit int) ([]*AdminLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*AdminLog
	for _, l := range s.logs {
		if !before.IsZero() && !l.CreatedAt.Before(before) {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Unread first, then newest first.
func sortNotifications(list []*Notification) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Read != list[j].Read {
			return !list[i].Read
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
