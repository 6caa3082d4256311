package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/idgen"
	"github.com/mbd888/trackrate/internal/money"
)

// MemoryStore is an in-memory implementation of Store for tests and
// local development.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	invitations map[string]*Invitation
	codes       map[string]*InvitationCode
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*User),
		invitations: make(map[string]*Invitation),
		codes:       make(map[string]*InvitationCode),
	}
}

func (s *MemoryStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
		if existing.Phone == u.Phone {
			return ErrPhoneTaken
		}
	}
	if u.ID == "" {
		u.ID = idgen.WithPrefix("usr_")
	}
	if u.TodayProfit == "" {
		u.TodayProfit = "0.00"
	}
	if u.ReferralBonus == "" {
		u.ReferralBonus = "0.00"
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) GetByUsernameOrEmail(ctx context.Context, handle string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(handle)
	for _, u := range s.users {
		if u.Username == handle || u.Email == lower {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetByReferralCode(ctx context.Context, code string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ReferralCode == code {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) Update(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	for _, existing := range s.users {
		if existing.ID == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
		if existing.Phone == u.Phone {
			return ErrPhoneTaken
		}
	}
	current.Username = u.Username
	current.Email = u.Email
	current.Phone = u.Phone
	current.FirstName = u.FirstName
	current.LastName = u.LastName
	current.Gender = u.Gender
	current.ProfilePicture = u.ProfilePicture
	current.PasswordHash = u.PasswordHash
	current.TransactionalPasswordHash = u.TransactionalPasswordHash
	current.IsStaff = u.IsStaff
	current.Active = u.Active
	current.MinBalanceWaived = u.MinBalanceWaived
	current.RegBonusAdded = u.RegBonusAdded
	current.LastConnection = u.LastConnection
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*User
	for _, u := range s.users {
		if f.Search != "" {
			search := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(u.Username), search) &&
				!strings.Contains(u.Email, search) {
				continue
			}
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		if f.Staff != nil && u.IsStaff != *f.Staff {
			continue
		}
		if !f.Before.IsZero() {
			if u.CreatedAt.After(f.Before) {
				continue
			}
			if u.CreatedAt.Equal(f.Before) && u.ID >= f.BeforeID {
				continue
			}
		}
		clone := *u
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) IncrementSubmissions(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.SubmissionsToday++
	return u.SubmissionsToday, nil
}

func (s *MemoryStore) IncrementSets(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.SetsToday++
	return u.SetsToday, nil
}

func (s *MemoryStore) AddTodayProfit(ctx context.Context, id string, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	current, _ := money.Parse(u.TodayProfit)
	u.TodayProfit = money.Format(current + cents)
	return nil
}

func (s *MemoryStore) SetTodayProfit(ctx context.Context, id string, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.TodayProfit = money.Format(cents)
	return nil
}

func (s *MemoryStore) SetDailyCounters(ctx context.Context, id string, submissions, sets int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.SubmissionsToday = submissions
	u.SetsToday = sets
	return nil
}

func (s *MemoryStore) AdjustReferralBonus(ctx context.Context, id string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	current, _ := money.Parse(u.ReferralBonus)
	current += delta
	u.ReferralBonus = money.Format(current)
	return current, nil
}

func (s *MemoryStore) ResetDaily(ctx context.Context, preserve []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(preserve))
	for _, id := range preserve {
		keep[id] = true
	}

	touched := 0
	for _, u := range s.users {
		if keep[u.ID] {
			u.SetsToday = 0
		} else {
			u.SubmissionsToday = 0
			u.TodayProfit = "0.00"
			u.SetsToday = 0
		}
		touched++
	}
	return touched, nil
}

func (s *MemoryStore) SetSession(ctx context.Context, id, surface, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if surface == SurfaceAdmin {
		u.SessionIDAdmin = sessionID
	} else {
		u.SessionIDUser = sessionID
	}
	return nil
}

func (s *MemoryStore) TouchLastConnection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastConnection = time.Now()
	return nil
}

func (s *MemoryStore) CountWorkers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, u := range s.users {
		if !u.IsStaff {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) LoggedInBetween(ctx context.Context, since, until time.Time) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*User
	for _, u := range s.users {
		if u.LastConnection.Before(since) || !u.LastConnection.Before(until) {
			continue
		}
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastConnection.After(out[j].LastConnection)
	})
	return out, nil
}

func (s *MemoryStore) RegistrationsByMonth(ctx context.Context, year int, loc *time.Location) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int)
	for _, u := range s.users {
		if u.IsStaff {
			continue
		}
		joined := u.CreatedAt.In(loc)
		if joined.Year() == year {
			counts[int(joined.Month())]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = idgen.WithPrefix("inv_")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	clone := *inv
	s.invitations[inv.ID] = &clone
	return nil
}

func (s *MemoryStore) InvitationByReferee(ctx context.Context, refereeID string) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invitations {
		if inv.RefereeID == refereeID {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, ErrInvitationNotFound
}

func (s *MemoryStore) InvitationsByReferrer(ctx context.Context, referrerID string) ([]*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Invitation
	for _, inv := range s.invitations {
		if inv.ReferrerID == referrerID {
			clone := *inv
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) MarkInvitationBonusPaid(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return ErrInvitationNotFound
	}
	inv.BonusPaid = true
	return nil
}

func (s *MemoryStore) CreateInvitationCode(ctx context.Context, code *InvitationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code.ID == "" {
		code.ID = idgen.WithPrefix("icd_")
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	clone := *code
	s.codes[code.ID] = &clone
	return nil
}

func (s *MemoryStore) GetInvitationCode(ctx context.Context, code string) (*InvitationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ic := range s.codes {
		if ic.Code == code {
			clone := *ic
			return &clone, nil
		}
	}
	return nil, ErrInvitationNotFound
}

func (s *MemoryStore) ConsumeInvitationCode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.codes[id]
	if !ok || ic.Used {
		return ErrInvitationUsed
	}
	ic.Used = true
	return nil
}

func (s *MemoryStore) ListInvitationCodes(ctx context.Context) ([]*InvitationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*InvitationCode, 0, len(s.codes))
	for _, ic := range s.codes {
		clone := *ic
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
