package packs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReassigner struct {
	calls []string
}

func (f *fakeReassigner) ReassignPack(ctx context.Context, packID string) (int, error) {
	f.calls = append(f.calls, packID)
	return 1, nil
}

func testPack(name, usd string, active bool) *Pack {
	return &Pack{
		Name:             name,
		USDValue:         usd,
		DailyMissions:    5,
		NumberOfSets:     2,
		ProfitPercentage: 0.5,
		DailyWithdrawals: 1,
		Active:           active,
	}
}

func TestCreate_And_List(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, testPack("Bronze", "50.00", true))
	require.NoError(t, err)
	_, err = svc.Create(ctx, testPack("Silver", "200.00", true))
	require.NoError(t, err)
	_, err = svc.Create(ctx, testPack("Legacy", "10.00", false))
	require.NoError(t, err)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	// Sorted ascending by usd_value
	assert.Equal(t, "Bronze", active[0].Name)
	assert.Equal(t, "Silver", active[1].Name)
}

func TestCreate_Invalid(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		pack *Pack
	}{
		{"empty name", testPack("", "50.00", true)},
		{"bad usd value", testPack("X", "abc", true)},
		{"zero missions", &Pack{Name: "X", USDValue: "1.00", DailyMissions: 0, NumberOfSets: 1}},
		{"zero sets", &Pack{Name: "X", USDValue: "1.00", DailyMissions: 5, NumberOfSets: 0}},
		{"negative profit", &Pack{Name: "X", USDValue: "1.00", DailyMissions: 5, NumberOfSets: 1, ProfitPercentage: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.pack)
			assert.ErrorIs(t, err, ErrInvalidPack)
		})
	}
}

func TestCommissionPercentage_Fallback(t *testing.T) {
	p := &Pack{ProfitPercentage: 0.5, SpecialProductPercentage: 2.5}
	assert.Equal(t, 2.5, p.CommissionPercentage())

	// Zero special percentage falls back to 5x the regular rate
	p.SpecialProductPercentage = 0
	assert.Equal(t, 2.5, p.CommissionPercentage())

	p.ProfitPercentage = 1.0
	assert.Equal(t, 5.0, p.CommissionPercentage())
}

func TestSelectForBalance(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	svc.Create(ctx, testPack("Bronze", "50.00", true))
	svc.Create(ctx, testPack("Silver", "200.00", true))
	svc.Create(ctx, testPack("Gold", "500.00", true))

	// Balance 500 qualifies for Gold exactly
	p, err := svc.SelectForBalance(ctx, 50000)
	require.NoError(t, err)
	assert.Equal(t, "Gold", p.Name)

	// Balance 300 lands on Silver
	p, err = svc.SelectForBalance(ctx, 30000)
	require.NoError(t, err)
	assert.Equal(t, "Silver", p.Name)

	// Balance below everything falls back to the cheapest active pack
	p, err = svc.SelectForBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Bronze", p.Name)
}

func TestSelectForBalance_NoActivePacks(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	_, err := svc.SelectForBalance(context.Background(), 10000)
	assert.ErrorIs(t, err, ErrNoActivePack)
}

func TestUpdate_DeactivationTriggersReassign(t *testing.T) {
	reassigner := &fakeReassigner{}
	svc := NewService(NewMemoryStore(), reassigner)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPack("Bronze", "50.00", true))
	require.NoError(t, err)

	// Plain update: no reassignment
	created.Name = "Bronze II"
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)
	assert.Empty(t, reassigner.calls)

	// Deactivation reassigns wallets referencing the pack
	created.Active = false
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)
	require.Len(t, reassigner.calls, 1)
	assert.Equal(t, created.ID, reassigner.calls[0])
}

func TestDelete_TriggersReassign(t *testing.T) {
	reassigner := &fakeReassigner{}
	svc := NewService(NewMemoryStore(), reassigner)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPack("Bronze", "50.00", true))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.Len(t, reassigner.calls, 1)
	assert.Equal(t, created.ID, reassigner.calls[0])

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrPackNotFound)
}

func TestPackOptions(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	svc.Create(ctx, testPack("Bronze", "50.00", true))
	svc.Create(ctx, testPack("Legacy", "10.00", false))

	opts, err := svc.PackOptions(ctx)
	require.NoError(t, err)
	require.Len(t, opts, 2)

	byID := map[string]bool{}
	for _, o := range opts {
		byID[o.ID] = o.Active
		if o.ID == "" {
			t.Error("expected pack option id")
		}
	}
	assert.Len(t, byID, 2)
}

func TestGetActive(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	created, _ := svc.Create(ctx, testPack("Legacy", "10.00", false))
	_, err := svc.GetActive(ctx, created.ID)
	assert.ErrorIs(t, err, ErrPackInactive)
}
