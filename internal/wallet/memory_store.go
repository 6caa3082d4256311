package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/trackrate/internal/money"
)

// MemoryStore is an in-memory wallet store for tests and development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]*walletState
	packs   PackSource // optional; nil disables auto-assignment
}

type walletState struct {
	balance     int64
	onHold      int64
	commission  int64
	salary      int64
	creditScore float64
	packID      string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewMemoryStore creates a new in-memory wallet store. packs may be nil.
func NewMemoryStore(packs PackSource) *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]*walletState),
		packs:   packs,
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return st.snapshot(userID), nil
}

func (m *MemoryStore) Create(ctx context.Context, userID string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.wallets[userID]; ok {
		return nil, ErrWalletExists
	}
	now := time.Now()
	st := &walletState{creditScore: 100, createdAt: now, updatedAt: now}
	m.wallets[userID] = st

	if err := m.ensurePack(ctx, st); err != nil {
		return nil, err
	}
	return st.snapshot(userID), nil
}

func (m *MemoryStore) Credit(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		st.balance, st.onHold = applyCredit(st.balance, st.onHold, amount)
		return nil
	})
}

func (m *MemoryStore) Debit(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		if st.balance < amount && st.onHold > 0 {
			return ErrHoldOutstanding
		}
		st.balance, st.onHold = applyDebit(st.balance, st.onHold, amount)
		return nil
	})
}

func (m *MemoryStore) CreditCommission(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		st.commission += amount
		return nil
	})
}

func (m *MemoryStore) DebitCommission(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		st.commission -= amount
		return nil
	})
}

func (m *MemoryStore) AddHold(ctx context.Context, userID string, amount int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		if st.balance > 0 {
			return ErrHoldConflict
		}
		st.onHold += amount
		return nil
	})
}

func (m *MemoryStore) ReleaseHold(ctx context.Context, userID string) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		if st.onHold <= 0 {
			return ErrNothingHeld
		}
		st.balance += st.onHold
		st.onHold = 0
		return nil
	})
}

func (m *MemoryStore) Adjust(ctx context.Context, userID string, delta int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		if delta > 0 {
			st.balance, st.onHold = applyCredit(st.balance, st.onHold, delta)
		} else {
			st.balance += delta
		}
		return nil
	})
}

func (m *MemoryStore) SetSalary(ctx context.Context, userID string, salary int64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		delta := salary - st.salary
		if delta > 0 {
			st.balance, st.onHold = applyCredit(st.balance, st.onHold, delta)
		} else {
			st.balance += delta
		}
		st.salary = salary
		return nil
	})
}

func (m *MemoryStore) SetCreditScore(ctx context.Context, userID string, score float64) (*Wallet, error) {
	return m.mutate(ctx, userID, func(st *walletState) error {
		st.creditScore = score
		return nil
	})
}

func (m *MemoryStore) SetPack(ctx context.Context, userID, packID string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	st.packID = packID
	st.updatedAt = time.Now()
	return st.snapshot(userID), nil
}

func (m *MemoryStore) ZeroAllSalaries(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, st := range m.wallets {
		if st.salary != 0 {
			st.salary = 0
			st.updatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ReassignPack(ctx context.Context, packID string) (int, error) {
	var opts []PackOption
	if m.packs != nil {
		var err error
		opts, err = m.packs.PackOptions(ctx)
		if err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, st := range m.wallets {
		if st.packID != packID {
			continue
		}
		if id, ok := SelectPack(opts, st.balance); ok {
			st.packID = id
		} else {
			st.packID = ""
		}
		st.updatedAt = time.Now()
		count++
	}
	return count, nil
}

// mutate applies a mutation to one wallet and re-checks pack assignment
// under the store lock.
func (m *MemoryStore) mutate(ctx context.Context, userID string, fn func(st *walletState) error) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	st.updatedAt = time.Now()

	if err := m.ensurePack(ctx, st); err != nil {
		return nil, err
	}
	return st.snapshot(userID), nil
}

// ensurePack re-runs auto-assignment when the wallet has no pack or an
// inactive one.
func (m *MemoryStore) ensurePack(ctx context.Context, st *walletState) error {
	if m.packs == nil {
		return nil
	}
	opts, err := m.packs.PackOptions(ctx)
	if err != nil {
		return err
	}

	if st.packID != "" {
		for _, p := range opts {
			if p.ID == st.packID && p.Active {
				return nil
			}
		}
	}
	if id, ok := SelectPack(opts, st.balance); ok {
		st.packID = id
	}
	return nil
}

func (st *walletState) snapshot(userID string) *Wallet {
	return &Wallet{
		UserID:      userID,
		Balance:     money.Format(st.balance),
		OnHold:      money.Format(st.onHold),
		Commission:  money.Format(st.commission),
		Salary:      money.Format(st.salary),
		CreditScore: st.creditScore,
		PackID:      st.packID,
		CreatedAt:   st.createdAt,
		UpdatedAt:   st.updatedAt,
	}
}
