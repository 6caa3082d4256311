package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

const testAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

type withdrawalFixture struct {
	svc     *Service
	store   *MemoryStore
	users   *users.Service
	wallets *wallet.Service
	packs   *packs.Service
	notify  *notify.Service
	payout  *stubPayout
}

// stubPayout fakes the on-chain sender.
type stubPayout struct {
	sends []payoutCall
	fail  error
}

type payoutCall struct {
	address   string
	amount    int64
	reference string
}

func (s *stubPayout) Send(ctx context.Context, toAddress string, amountCents int64, reference string) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	s.sends = append(s.sends, payoutCall{toAddress, amountCents, reference})
	return fmt.Sprintf("0x%064d", len(s.sends)), nil
}

func newFixture(t *testing.T, withPayout bool) *withdrawalFixture {
	t.Helper()
	packsSvc := packs.NewService(packs.NewMemoryStore(), nil)
	walletSvc := wallet.NewService(wallet.NewMemoryStore(packsSvc))
	settingsSvc := settings.NewService(settings.NewMemoryStore())
	usersSvc := users.NewService(users.NewMemoryStore(), walletSvc, settingsSvc, packsSvc, nil)
	notifySvc := notify.NewService(notify.NewMemoryStore(), nil, nil)
	store := NewMemoryStore()

	var payout *stubPayout
	var sender Payout
	if withPayout {
		payout = &stubPayout{}
		sender = payout
	}
	svc := NewService(store, walletSvc, usersSvc, packsSvc, settingsSvc, notifySvc, sender, nil)
	return &withdrawalFixture{
		svc:     svc,
		store:   store,
		users:   usersSvc,
		wallets: walletSvc,
		packs:   packsSvc,
		notify:  notifySvc,
		payout:  payout,
	}
}

var accountSeq int

func (f *withdrawalFixture) signup(t *testing.T, prefix string) *users.User {
	t.Helper()
	ctx := context.Background()
	accountSeq++
	code, err := f.users.MintInvitationCode(ctx, "")
	require.NoError(t, err)
	u, err := f.users.Signup(ctx, users.SignupParams{
		Username:              fmt.Sprintf("%s%d", prefix, accountSeq),
		Email:                 fmt.Sprintf("%s%d@example.com", prefix, accountSeq),
		Phone:                 fmt.Sprintf("+1777000%04d", accountSeq),
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

func (f *withdrawalFixture) admin(t *testing.T) *users.User {
	t.Helper()
	u := f.signup(t, "boss")
	u.IsStaff = true
	require.NoError(t, f.users.Update(context.Background(), u))
	return u
}

func (f *withdrawalFixture) fund(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := f.wallets.Credit(context.Background(), userID, mustCents(t, amount))
	require.NoError(t, err)
}

func (f *withdrawalFixture) balance(t *testing.T, userID string) string {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func mustCents(t *testing.T, s string) int64 {
	t.Helper()
	cents, ok := money.Parse(s)
	require.True(t, ok, "bad test amount %q", s)
	return cents
}

func TestRequest_CreatesPending(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")

	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, wd.Status)
	assert.Equal(t, "40.00", wd.Amount)
	assert.Equal(t, testAddress, wd.Address)
	assert.False(t, wd.IsReviewed)

	// Requesting reserves nothing; the debit lands at review time.
	assert.Equal(t, "100.00", f.balance(t, u.ID))

	mine, err := f.svc.Mine(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, wd.ID, mine[0].ID)

	notes, err := f.notify.ListUser(ctx, u.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, "Withdrawal Status Update", notes[0].Title)
	assert.Equal(t, "Your withdrawal request of 40.00 USD is pending.", notes[0].Message)
}

func TestRequest_WrongTransactionalPassword(t *testing.T) {
	f := newFixture(t, false)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")

	_, err := f.svc.Request(context.Background(), u.ID, "0000", mustCents(t, "40.00"), testAddress)
	require.ErrorIs(t, err, users.ErrWrongTransactionalPassword)
}

func TestRequest_RejectsNonPositive(t *testing.T) {
	f := newFixture(t, false)
	u := f.signup(t, "saver")

	_, err := f.svc.Request(context.Background(), u.ID, "4321", 0, testAddress)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRequest_RejectsBadAddress(t *testing.T) {
	f := newFixture(t, false)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")

	for _, addr := range []string{"", "mywallet", "0x1234", testAddress + "ff"} {
		_, err := f.svc.Request(context.Background(), u.ID, "4321", mustCents(t, "40.00"), addr)
		require.ErrorIs(t, err, ErrInvalidAddress, "address %q", addr)
	}
}

func TestRequest_InsufficientBalance(t *testing.T) {
	f := newFixture(t, false)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "10.00")

	_, err := f.svc.Request(context.Background(), u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRequest_DailyLimit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.signup(t, "saver")

	pack, err := f.packs.Create(ctx, &packs.Pack{
		Name:             "Standard",
		USDValue:         "50.00",
		DailyMissions:    30,
		NumberOfSets:     1,
		ProfitPercentage: 0.5,
		MinimumBalance:   "0.00",
		DailyWithdrawals: 1,
		Active:           true,
	})
	require.NoError(t, err)
	f.fund(t, u.ID, "100.00")
	_, err = f.wallets.SetPack(ctx, u.ID, pack.ID)
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, u.ID, "4321", mustCents(t, "10.00"), testAddress)
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, u.ID, "4321", mustCents(t, "10.00"), testAddress)
	require.ErrorIs(t, err, ErrDailyLimit)
}

func TestRequest_NoPackMeansNoLimit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")

	for i := 0; i < 3; i++ {
		_, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "5.00"), testAddress)
		require.NoError(t, err)
	}
}

func TestReview_ProcessedDebits(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	got, err := f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusProcessed)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.True(t, got.IsReviewed)
	assert.Equal(t, "60.00", f.balance(t, u.ID))

	notes, err := f.notify.ListUser(ctx, u.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, "Your withdrawal request of 40.00 USD has been processed successfully. Your current balance is now 60.00 USD.", notes[0].Message)
}

func TestReview_RejectedKeepsBalance(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	got, err := f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	assert.True(t, got.IsReviewed)
	assert.Equal(t, "100.00", f.balance(t, u.ID))

	notes, err := f.notify.ListUser(ctx, u.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, "Your withdrawal request of 40.00 USD has been rejected. Your current balance is now 100.00 USD.", notes[0].Message)
}

func TestReview_OnlyOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusProcessed)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusRejected)
	require.ErrorIs(t, err, ErrAlreadyReviewed)
	_, err = f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusProcessed)
	require.ErrorIs(t, err, ErrAlreadyReviewed)

	// Debited exactly once.
	assert.Equal(t, "60.00", f.balance(t, u.ID))
}

func TestReview_Gate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, boss.ID, "9999", wd.ID, StatusProcessed)
	require.ErrorIs(t, err, ErrBadAdminPassword)

	// Pending is not a reviewable outcome.
	_, err = f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusPending)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.Review(ctx, boss.ID, "4321", "wd_missing", StatusProcessed)
	require.ErrorIs(t, err, ErrWithdrawalNotFound)

	assert.Equal(t, "100.00", f.balance(t, u.ID))
}

func TestReview_PayoutDispatch(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	got, err := f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusProcessed)
	require.NoError(t, err)
	assert.NotEmpty(t, got.TxHash)

	require.Len(t, f.payout.sends, 1)
	assert.Equal(t, testAddress, f.payout.sends[0].address)
	assert.Equal(t, mustCents(t, "40.00"), f.payout.sends[0].amount)
	assert.Equal(t, wd.ID, f.payout.sends[0].reference)

	stored, err := f.svc.Get(ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, got.TxHash, stored.TxHash)
}

func TestReview_PayoutFailureStillProcesses(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.payout.fail = errors.New("rpc down")
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	got, err := f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusProcessed)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Empty(t, got.TxHash)
	assert.Equal(t, "60.00", f.balance(t, u.ID))
}

func TestReview_WritesAdminLog(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")
	wd, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "40.00"), testAddress)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, boss.ID, "4321", wd.ID, StatusProcessed)
	require.NoError(t, err)

	logs, err := f.notify.ListLogs(ctx, time.Time{}, "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Description, wd.ID)
	assert.Contains(t, logs[0].Description, u.Username)
	assert.Contains(t, logs[0].Description, "'Processed'")
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	boss := f.admin(t)
	u := f.signup(t, "saver")
	f.fund(t, u.ID, "100.00")

	a, err := f.svc.Request(ctx, u.ID, "4321", mustCents(t, "10.00"), testAddress)
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, u.ID, "4321", mustCents(t, "20.00"), testAddress)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, boss.ID, "4321", a.ID, StatusProcessed)
	require.NoError(t, err)

	pending, err := f.svc.List(ctx, Filter{Status: StatusPending, Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "20.00", pending[0].Amount)

	all, err := f.svc.List(ctx, Filter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
