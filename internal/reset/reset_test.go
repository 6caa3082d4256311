package reset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/trackrate/internal/holdband"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/products"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/tasks"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type resetFixture struct {
	svc      *Service
	store    *MemoryStore
	users    *users.Service
	wallets  *wallet.Service
	engine   *tasks.Service
	tasks    *tasks.MemoryStore
	settings *settings.Service
}

func newFixture(t *testing.T) *resetFixture {
	t.Helper()
	packsSvc := packs.NewService(packs.NewMemoryStore(), nil)
	walletSvc := wallet.NewService(wallet.NewMemoryStore(packsSvc))
	settingsSvc := settings.NewService(settings.NewMemoryStore())
	usersSvc := users.NewService(users.NewMemoryStore(), walletSvc, settingsSvc, packsSvc, nil)
	productsSvc := products.NewService(products.NewMemoryStore())
	bandsSvc := holdband.NewService(holdband.NewMemoryStore())
	notifySvc := notify.NewService(notify.NewMemoryStore(), nil, nil)
	taskStore := tasks.NewMemoryStore()
	engine := tasks.NewService(taskStore, productsSvc, walletSvc, packsSvc, bandsSvc, usersSvc, settingsSvc, notifySvc, nil)
	store := NewMemoryStore()
	svc := NewService(store, usersSvc, walletSvc, engine, settingsSvc, nil)

	// Pin the reset timezone so boundary math is deterministic.
	ctx := context.Background()
	cur, err := settingsSvc.Get(ctx)
	require.NoError(t, err)
	cur.Timezone = "UTC"
	_, err = settingsSvc.Update(ctx, cur)
	require.NoError(t, err)

	return &resetFixture{
		svc:      svc,
		store:    store,
		users:    usersSvc,
		wallets:  walletSvc,
		engine:   engine,
		tasks:    taskStore,
		settings: settingsSvc,
	}
}

var workerSeq int

func (f *resetFixture) worker(t *testing.T) *users.User {
	t.Helper()
	ctx := context.Background()
	workerSeq++
	code, err := f.users.MintInvitationCode(ctx, "")
	require.NoError(t, err)
	u, err := f.users.Signup(ctx, users.SignupParams{
		Username:              fmt.Sprintf("sleeper%d", workerSeq),
		Email:                 fmt.Sprintf("sleeper%d@example.com", workerSeq),
		Phone:                 fmt.Sprintf("+1555000%04d", workerSeq),
		Password:              "hunter22",
		TransactionalPassword: "4321",
		FirstName:             "Test",
		LastName:              "Sleeper",
		Gender:                "other",
		InvitationCode:        code.Code,
	})
	require.NoError(t, err)
	return u
}

// park gives the worker an unplayed reserved special task, the state
// that exempts them from the submission reset.
func (f *resetFixture) park(t *testing.T, userID string) {
	t.Helper()
	_, err := f.tasks.Create(context.Background(), &tasks.Task{
		UserID:     userID,
		Amount:     "500.00",
		Commission: "12.50",
		RatingNo:   fmt.Sprintf("9%07d", workerSeq),
		GameNumber: 1,
		Special:    true,
		Pending:    true,
		Active:     true,
	})
	require.NoError(t, err)
}

func (f *resetFixture) seedDay(t *testing.T, userID string, submissions, sets int, profitCents, salaryCents int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.users.SetDailyCounters(ctx, userID, submissions, sets))
	require.NoError(t, f.users.SetTodayProfit(ctx, userID, profitCents))
	_, err := f.wallets.SetSalary(ctx, userID, salaryCents)
	require.NoError(t, err)
}

func TestTick_RunsOncePerBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	performed, err := f.svc.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, performed, "fresh tracker is behind every boundary")

	performed, err = f.svc.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, performed, "same boundary must not reset twice")

	tr, err := f.store.Get(ctx)
	require.NoError(t, err)
	want := f.svc.boundary(ctx, time.Now())
	assert.True(t, tr.LastResetTime.Equal(want), "tracker stamped with the boundary, got %v want %v", tr.LastResetTime, want)
}

func TestTick_ResetsCountersAndSalary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.worker(t)
	f.seedDay(t, u.ID, 7, 2, 450, 1200)

	performed, err := f.svc.Tick(ctx)
	require.NoError(t, err)
	require.True(t, performed)

	got, err := f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SubmissionsToday)
	assert.Equal(t, 0, got.SetsToday)
	assert.Equal(t, "0.00", got.TodayProfit)

	w, err := f.wallets.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", w.Salary)
}

func TestTick_PreservesParkedWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parked := f.worker(t)
	free := f.worker(t)
	f.seedDay(t, parked.ID, 7, 2, 450, 1200)
	f.seedDay(t, free.ID, 5, 1, 300, 800)
	f.park(t, parked.ID)

	performed, err := f.svc.Tick(ctx)
	require.NoError(t, err)
	require.True(t, performed)

	kept, err := f.users.Get(ctx, parked.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, kept.SubmissionsToday, "parked worker resumes at the same rank")
	assert.Equal(t, "4.50", kept.TodayProfit)
	assert.Equal(t, 0, kept.SetsToday)

	cleared, err := f.users.Get(ctx, free.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared.SubmissionsToday)
	assert.Equal(t, "0.00", cleared.TodayProfit)
	assert.Equal(t, 0, cleared.SetsToday)

	// Salaries are zeroed for both groups.
	for _, id := range []string{parked.ID, free.ID} {
		w, err := f.wallets.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "0.00", w.Salary)
	}
}

func TestTick_SecondInstanceObservesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := NewService(f.store, f.users, f.wallets, f.engine, f.settings, nil)

	performed, err := f.svc.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, performed)

	performed, err = other.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, performed, "claim on a shared tracker has a single winner")
}

func TestBoundary_UsesConfiguredTimezone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 15, 3, 0, 0, 0, time.UTC)
	got := f.svc.boundary(ctx, now)
	assert.True(t, got.Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)), "got %v", got)

	cur, err := f.settings.Get(ctx)
	require.NoError(t, err)
	cur.Timezone = "America/New_York"
	_, err = f.settings.Update(ctx, cur)
	require.NoError(t, err)

	// 03:00 UTC is still the previous evening in New York, so the most
	// recent local midnight is June 14 at 04:00 UTC.
	got = f.svc.boundary(ctx, now)
	assert.True(t, got.Equal(time.Date(2024, 6, 14, 4, 0, 0, 0, time.UTC)), "got %v", got)
}

func TestSetInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetInterval(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	tr, err := f.svc.SetInterval(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, tr.ResetIntervalHours)

	tr, err = f.svc.Tracker(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, tr.ResetIntervalHours)
}

func TestMiddleware_TicksOnRequest(t *testing.T) {
	f := newFixture(t)

	r := gin.New()
	r.Use(f.svc.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	tr, err := f.store.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, tr.LastResetTime.IsZero(), "request traffic drives the rollover")
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		tr, err := f.store.Get(context.Background())
		return err == nil && !tr.LastResetTime.IsZero()
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop on cancel")
	}
}

func TestHandler_TrackerEndpoints(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	r := gin.New()
	h.RegisterAdminRoutes(r.Group("/v1/admin"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/reset-tracker", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "resetIntervalHours")

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/reset-tracker", strings.NewReader(`{"intervalHours":12}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resetIntervalHours":12`)

	req = httptest.NewRequest(http.MethodPut, "/v1/admin/reset-tracker", strings.NewReader(`{"intervalHours":0}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
