package admin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/trackrate/internal/holdband"
	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/products"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/tasks"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

type adminFixture struct {
	svc      *Service
	users    *users.Service
	wallets  *wallet.Service
	packs    *packs.Service
	products *products.Service
	settings *settings.Service
	notify   *notify.Service
}

func newFixture(t *testing.T) *adminFixture {
	t.Helper()
	packsSvc := packs.NewService(packs.NewMemoryStore(), nil)
	walletSvc := wallet.NewService(wallet.NewMemoryStore(packsSvc))
	settingsSvc := settings.NewService(settings.NewMemoryStore())
	usersSvc := users.NewService(users.NewMemoryStore(), walletSvc, settingsSvc, packsSvc, nil)
	productsSvc := products.NewService(products.NewMemoryStore())
	bandsSvc := holdband.NewService(holdband.NewMemoryStore())
	notifySvc := notify.NewService(notify.NewMemoryStore(), nil, nil)
	engine := tasks.NewService(tasks.NewMemoryStore(), productsSvc, walletSvc, packsSvc, bandsSvc, usersSvc, settingsSvc, notifySvc, nil)
	svc := NewService(usersSvc, walletSvc, packsSvc, engine, productsSvc, notifySvc, settingsSvc, nil)
	return &adminFixture{
		svc:      svc,
		users:    usersSvc,
		wallets:  walletSvc,
		packs:    packsSvc,
		products: productsSvc,
		settings: settingsSvc,
		notify:   notifySvc,
	}
}

var accountSeq int

func (f *adminFixture) signup(t *testing.T, prefix string) *users.User {
	t.Helper()
	ctx := context.Background()
	accountSeq++
	code, err := f.users.MintInvitationCode(ctx, "")
	require.NoError(t, err)
	u, err := f.users.Signup(ctx, users.SignupParams{
		Username:              fmt.Sprintf("%s%d", prefix, accountSeq),
		Email:                 fmt.Sprintf("%s%d@example.com", prefix, accountSeq),
		Phone:                 fmt.Sprintf("+1555000%04d", accountSeq),
		Password:              "hunter22",
		TransactionalPassword: "4321",
		FirstName:             "Test",
		LastName:              "Account",
		Gender:                "other",
		InvitationCode:        code.Code,
	})
	require.NoError(t, err)
	return u
}

// admin registers an account and promotes it to staff.
func (f *adminFixture) admin(t *testing.T) *users.User {
	t.Helper()
	u := f.signup(t, "boss")
	u.IsStaff = true
	require.NoError(t, f.users.Update(context.Background(), u))
	return u
}

// worker registers an account and funds it. Funding runs pack
// auto-assignment, so with a single seeded pack the worker lands on it.
func (f *adminFixture) worker(t *testing.T, balance string) *users.User {
	t.Helper()
	u := f.signup(t, "player")
	cents := mustCents(t, balance)
	if cents > 0 {
		_, err := f.wallets.Credit(context.Background(), u.ID, cents)
		require.NoError(t, err)
	}
	return u
}

func (f *adminFixture) pack(t *testing.T, daily, sets int) *packs.Pack {
	t.Helper()
	pk, err := f.packs.Create(context.Background(), &packs.Pack{
		Name:             "Standard",
		USDValue:         "50.00",
		DailyMissions:    daily,
		NumberOfSets:     sets,
		ProfitPercentage: 0.5,
		MinimumBalance:   "0.00",
		DailyWithdrawals: 1,
		Active:           true,
	})
	require.NoError(t, err)
	return pk
}

func (f *adminFixture) balance(t *testing.T, userID string) *wallet.Wallet {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (f *adminFixture) setRegBonus(t *testing.T, amount string) {
	t.Helper()
	ctx := context.Background()
	cur, err := f.settings.Get(ctx)
	require.NoError(t, err)
	cur.BonusWhenRegistering = amount
	_, err = f.settings.Update(ctx, cur)
	require.NoError(t, err)
}

func mustCents(t *testing.T, s string) int64 {
	t.Helper()
	cents, ok := money.Parse(s)
	require.True(t, ok, "bad test amount %q", s)
	return cents
}

func TestUpdateBalance_CreditsWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	sum, err := f.svc.UpdateBalance(ctx, boss.ID, "4321", u.ID, mustCents(t, "50.00"), "manual top-up")
	require.NoError(t, err)
	assert.Equal(t, "250.00", sum.Wallet.Balance)
	assert.Equal(t, "250.00", f.balance(t, u.ID).Balance)
}

func TestUpdateBalance_WrongAdminPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	_, err := f.svc.UpdateBalance(ctx, boss.ID, "9999", u.ID, mustCents(t, "50.00"), "manual top-up")
	require.ErrorIs(t, err, ErrBadAdminPassword)
	assert.Equal(t, "200.00", f.balance(t, u.ID).Balance)
}

func TestCalculateBalance_PreviewsWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	u := f.worker(t, "200.00")

	calc, err := f.svc.CalculateBalance(ctx, u.ID, mustCents(t, "25.00"))
	require.NoError(t, err)
	assert.Equal(t, "200.00", calc.CurrentBalance)
	assert.Equal(t, "25.00", calc.BalanceAdjustment)
	assert.Equal(t, "225.00", calc.ResultingBalance)
	assert.False(t, calc.NegativeBalanceCleared)
	assert.False(t, calc.OnHoldMovedToBalance)

	assert.Equal(t, "200.00", f.balance(t, u.ID).Balance)
}

func TestCalculateBalance_FlagsDeficitClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	u := f.worker(t, "0.00")

	_, err := f.wallets.Adjust(ctx, u.ID, mustCents(t, "-40.00"))
	require.NoError(t, err)

	calc, err := f.svc.CalculateBalance(ctx, u.ID, mustCents(t, "60.00"))
	require.NoError(t, err)
	assert.Equal(t, "-40.00", calc.CurrentBalance)
	assert.Equal(t, "20.00", calc.ResultingBalance)
	assert.True(t, calc.NegativeBalanceCleared)
}

func TestUpdateProfit_MovesCommissionBothWays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	sum, err := f.svc.UpdateProfit(ctx, boss.ID, "4321", u.ID, mustCents(t, "12.34"), "adjustment")
	require.NoError(t, err)
	assert.Equal(t, "12.34", sum.TodayProfit)
	assert.Equal(t, "12.34", f.balance(t, u.ID).Commission)

	// Lowering the target claws the difference back out of commission.
	sum, err = f.svc.UpdateProfit(ctx, boss.ID, "4321", u.ID, mustCents(t, "5.00"), "correction")
	require.NoError(t, err)
	assert.Equal(t, "5.00", sum.TodayProfit)
	assert.Equal(t, "5.00", f.balance(t, u.ID).Commission)
}

func TestUpdateSalary_DeltaHitsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	sum, err := f.svc.UpdateSalary(ctx, boss.ID, "4321", u.ID, mustCents(t, "40.00"), "raise")
	require.NoError(t, err)
	assert.Equal(t, "40.00", sum.Wallet.Salary)
	assert.Equal(t, "240.00", sum.Wallet.Balance)

	sum, err = f.svc.UpdateSalary(ctx, boss.ID, "4321", u.ID, mustCents(t, "15.00"), "cut")
	require.NoError(t, err)
	assert.Equal(t, "15.00", sum.Wallet.Salary)
	assert.Equal(t, "215.00", sum.Wallet.Balance)
}

func TestToggleRegBonus_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	f.setRegBonus(t, "10.00")
	boss := f.admin(t)
	u := f.worker(t, "200.00")
	require.False(t, u.RegBonusAdded)

	sum, err := f.svc.ToggleRegBonus(ctx, boss.ID, "4321", u.ID)
	require.NoError(t, err)
	assert.True(t, sum.RegBonusAdded)
	assert.Equal(t, "210.00", sum.Wallet.Balance)

	sum, err = f.svc.ToggleRegBonus(ctx, boss.ID, "4321", u.ID)
	require.NoError(t, err)
	assert.False(t, sum.RegBonusAdded)
	assert.Equal(t, "200.00", sum.Wallet.Balance)
}

func TestToggleMinBalance_FlipsWaiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	sum, err := f.svc.ToggleMinBalance(ctx, boss.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, sum.MinBalanceWaived)

	sum, err = f.svc.ToggleMinBalance(ctx, boss.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, sum.MinBalanceWaived)
}

func TestToggleActive_Deactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	sum, err := f.svc.ToggleActive(ctx, boss.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, sum.Active)

	sum, err = f.svc.ToggleActive(ctx, boss.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, sum.Active)
}

func TestResetAccount_SetsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	require.NoError(t, f.users.SetDailyCounters(ctx, u.ID, 12, 1))

	subs := 5
	sum, err := f.svc.ResetAccount(ctx, boss.ID, "4321", u.ID, &subs, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.SubmissionsToday)
	assert.Equal(t, 1, sum.SetsToday, "set count is preserved when the worker has sets left")
}

func TestResetAccount_DefaultsToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	require.NoError(t, f.users.SetDailyCounters(ctx, u.ID, 30, 2))

	// All sets exhausted: omitting counts rewinds both to zero.
	sum, err := f.svc.ResetAccount(ctx, boss.ID, "4321", u.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.SubmissionsToday)
	assert.Equal(t, 0, sum.SetsToday)
}

func TestResetAccount_RejectsCountsBeyondPack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	subs := 31
	_, err := f.svc.ResetAccount(ctx, boss.ID, "4321", u.ID, &subs, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "submissionCount", ve.Field)

	sets := 3
	_, err = f.svc.ResetAccount(ctx, boss.ID, "4321", u.ID, nil, &sets)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "setCount", ve.Field)
}

func TestResetAccount_RequiresPack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.worker(t, "0.00") // never funded, no pack assigned

	_, err := f.svc.ResetAccount(ctx, boss.ID, "4321", u.ID, nil, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "user", ve.Field)
}

func TestSetCreditScore_Bounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	_, err := f.svc.SetCreditScore(ctx, boss.ID, "4321", u.ID, 150)
	require.ErrorIs(t, err, wallet.ErrInvalidScore)

	sum, err := f.svc.SetCreditScore(ctx, boss.ID, "4321", u.ID, 85.5)
	require.NoError(t, err)
	assert.Equal(t, 85.5, sum.Wallet.CreditScore)
}

func TestSetPack_RejectsInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	dormant, err := f.packs.Create(ctx, &packs.Pack{
		Name:             "Retired",
		USDValue:         "500.00",
		DailyMissions:    40,
		NumberOfSets:     3,
		ProfitPercentage: 1.0,
		MinimumBalance:   "0.00",
		DailyWithdrawals: 2,
		Active:           false,
	})
	require.NoError(t, err)

	_, err = f.svc.SetPack(ctx, boss.ID, "4321", u.ID, dormant.ID)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "packId", ve.Field)

	_, err = f.svc.SetPack(ctx, boss.ID, "4321", u.ID, "no-such-pack")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "packId", ve.Field)
}

func TestSetPack_AssignsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	vip, err := f.packs.Create(ctx, &packs.Pack{
		Name:             "VIP",
		USDValue:         "500.00",
		DailyMissions:    40,
		NumberOfSets:     3,
		ProfitPercentage: 1.0,
		MinimumBalance:   "0.00",
		DailyWithdrawals: 2,
		Active:           true,
	})
	require.NoError(t, err)

	sum, err := f.svc.SetPack(ctx, boss.ID, "4321", u.ID, vip.ID)
	require.NoError(t, err)
	assert.Equal(t, vip.ID, sum.Wallet.PackID)
	assert.Equal(t, 40, sum.TotalAvailablePlay)
}

func TestListUsers_DecoratesAndSkipsStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	f.admin(t)
	u := f.worker(t, "200.00")

	workers := false
	list, err := f.svc.ListUsers(ctx, users.Filter{Staff: &workers, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, u.ID, list[0].ID)
	assert.Equal(t, "200.00", list[0].Wallet.Balance)
	assert.Equal(t, 30, list[0].TotalAvailablePlay)
	assert.Equal(t, 0, list[0].TotalPlay)
}

func TestGetUser_RecordsAdminLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	boss := f.admin(t)
	u := f.worker(t, "200.00")

	sum, err := f.svc.GetUser(ctx, boss.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sum.ID)

	logs, err := f.notify.ListLogs(ctx, time.Time{}, "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Description, u.Username)
}

func TestDashboard_Aggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pack(t, 30, 2)
	f.admin(t)
	u1 := f.worker(t, "200.00")
	f.worker(t, "100.00")
	_, err := f.products.Create(ctx, &products.Product{Name: "Glasshouse", Price: "120.00"})
	require.NoError(t, err)

	require.NoError(t, f.users.TouchLastConnection(ctx, u1.ID))

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, d.TotalUsers, "staff accounts are not counted")
	assert.Equal(t, 1, d.ActiveProducts)
	assert.Equal(t, 0, d.TotalSubmissions)

	require.Equal(t, 1, d.LoginsToday.Count)
	require.Len(t, d.LoginsToday.Users, 1)
	assert.Equal(t, u1.ID, d.LoginsToday.Users[0].ID)

	require.Len(t, d.RegistrationsByMonth, 12)
	signups := 0
	for _, n := range d.RegistrationsByMonth {
		signups += n
	}
	assert.Equal(t, 2, signups)

	loc := f.settings.Location(ctx)
	assert.Len(t, d.SubmissionsByMonth, int(time.Now().In(loc).Month()))
}
