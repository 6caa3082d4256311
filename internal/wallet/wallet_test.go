package wallet

import (
	"context"
	"testing"
)

type fakePacks struct {
	opts []PackOption
}

func (f *fakePacks) PackOptions(ctx context.Context) ([]PackOption, error) {
	return f.opts, nil
}

func newTestService(packs PackSource) (*Service, *MemoryStore) {
	store := NewMemoryStore(packs)
	return NewService(store), store
}

func mustCreate(t *testing.T, svc *Service, userID string) *Wallet {
	t.Helper()
	w, err := svc.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", userID, err)
	}
	return w
}

func assertState(t *testing.T, w *Wallet, balance, onHold string) {
	t.Helper()
	if w.Balance != balance {
		t.Errorf("balance = %s, want %s", w.Balance, balance)
	}
	if w.OnHold != onHold {
		t.Errorf("on_hold = %s, want %s", w.OnHold, onHold)
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService(nil)
	w := mustCreate(t, svc, "usr_1")

	assertState(t, w, "0.00", "0.00")
	if w.Commission != "0.00" || w.Salary != "0.00" {
		t.Errorf("commission/salary = %s/%s, want 0.00/0.00", w.Commission, w.Salary)
	}
	if w.CreditScore != 100 {
		t.Errorf("credit score = %v, want 100", w.CreditScore)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")

	if _, err := svc.Create(context.Background(), "usr_1"); err != ErrWalletExists {
		t.Errorf("second Create = %v, want ErrWalletExists", err)
	}
}

func TestCredit_SimpleDeposit(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")

	w, err := svc.Credit(context.Background(), "usr_1", 10000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	assertState(t, w, "100.00", "0.00")
}

func TestDebit_Sufficient(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)

	w, err := svc.Debit(context.Background(), "usr_1", 4000)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	assertState(t, w, "60.00", "0.00")
}

func TestDebit_ExactBalance(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)

	w, err := svc.Debit(context.Background(), "usr_1", 10000)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	assertState(t, w, "0.00", "0.00")
}

func TestDebit_InsufficientReservesFullAmount(t *testing.T) {
	// (100, 0) debit 150 -> balance -50, on_hold 150
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)

	w, err := svc.Debit(context.Background(), "usr_1", 15000)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	assertState(t, w, "-50.00", "150.00")
}

func TestDebit_RejectedWhileHoldOutstanding(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	svc.Debit(context.Background(), "usr_1", 15000) // now (-50, 150)

	if _, err := svc.Debit(context.Background(), "usr_1", 5000); err != ErrHoldOutstanding {
		t.Errorf("insolvent debit with hold = %v, want ErrHoldOutstanding", err)
	}
}

func TestCredit_ClearsDeficitAndMergesHold(t *testing.T) {
	// (-50, 150) credit 60: deficit cleared to 10, then the 150 hold
	// merges back -> (160, 0)
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	svc.Debit(context.Background(), "usr_1", 15000) // (-50, 150)

	w, err := svc.Credit(context.Background(), "usr_1", 6000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	assertState(t, w, "160.00", "0.00")
}

func TestCredit_PartialDeficitKeepsHold(t *testing.T) {
	// (-50, 150) credit 30 -> still negative, hold untouched: (-20, 150)
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	svc.Debit(context.Background(), "usr_1", 15000)

	w, err := svc.Credit(context.Background(), "usr_1", 3000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	assertState(t, w, "-20.00", "150.00")
}

func TestCredit_ExactDeficitMergesHold(t *testing.T) {
	// (-50, 150) credit 50 -> balance 0, hold merges: (150, 0)
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	svc.Debit(context.Background(), "usr_1", 15000)

	w, err := svc.Credit(context.Background(), "usr_1", 5000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	assertState(t, w, "150.00", "0.00")
}

func TestExclusionInvariant_AcrossOperations(t *testing.T) {
	// balance and on_hold must never both be positive, whatever the sequence
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	ctx := context.Background()

	check := func(w *Wallet, op string) {
		t.Helper()
		bal, hold := w.Balance, w.OnHold
		if bal[0] != '-' && bal != "0.00" && hold != "0.00" {
			t.Fatalf("after %s: balance %s and on_hold %s both positive", op, bal, hold)
		}
	}

	w, _ := svc.Credit(ctx, "usr_1", 20000)
	check(w, "credit 200")
	w, _ = svc.Debit(ctx, "usr_1", 5000)
	check(w, "debit 50")
	w, _ = svc.Debit(ctx, "usr_1", 30000)
	check(w, "debit 300")
	w, _ = svc.Credit(ctx, "usr_1", 1000)
	check(w, "credit 10")
	w, _ = svc.Adjust(ctx, "usr_1", 4000)
	check(w, "adjust 40")
	w, _ = svc.Credit(ctx, "usr_1", 100000)
	check(w, "credit 1000")
}

func TestCommissionLedger(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	ctx := context.Background()

	w, err := svc.CreditCommission(ctx, "usr_1", 375)
	if err != nil {
		t.Fatalf("CreditCommission failed: %v", err)
	}
	if w.Commission != "3.75" {
		t.Errorf("commission = %s, want 3.75", w.Commission)
	}

	w, err = svc.DebitCommission(ctx, "usr_1", 125)
	if err != nil {
		t.Fatalf("DebitCommission failed: %v", err)
	}
	if w.Commission != "2.50" {
		t.Errorf("commission = %s, want 2.50", w.Commission)
	}
}

func TestAddHold_RejectedWhileBalancePositive(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 5000)

	if _, err := svc.AddHold(context.Background(), "usr_1", 1000); err != ErrHoldConflict {
		t.Errorf("AddHold on positive balance = %v, want ErrHoldConflict", err)
	}
}

func TestReleaseHold_TransfersEverything(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	svc.Debit(context.Background(), "usr_1", 15000) // (-50, 150)

	w, err := svc.ReleaseHold(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("ReleaseHold failed: %v", err)
	}
	assertState(t, w, "100.00", "0.00")
}

func TestReleaseHold_NothingHeld(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")

	if _, err := svc.ReleaseHold(context.Background(), "usr_1"); err != ErrNothingHeld {
		t.Errorf("ReleaseHold with no hold = %v, want ErrNothingHeld", err)
	}
}

func TestAdjust_NegativeDelta(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)

	w, err := svc.Adjust(context.Background(), "usr_1", -3000)
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	assertState(t, w, "70.00", "0.00")
}

func TestAdjust_PositiveMergesHold(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	svc.Debit(context.Background(), "usr_1", 15000) // (-50, 150)

	w, err := svc.Adjust(context.Background(), "usr_1", 6000)
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	assertState(t, w, "160.00", "0.00")
}

func TestSetSalary_MovesDeltaThroughBalance(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	svc.Credit(context.Background(), "usr_1", 10000)
	ctx := context.Background()

	w, err := svc.SetSalary(ctx, "usr_1", 2000)
	if err != nil {
		t.Fatalf("SetSalary failed: %v", err)
	}
	if w.Salary != "20.00" {
		t.Errorf("salary = %s, want 20.00", w.Salary)
	}
	assertState(t, w, "120.00", "0.00")

	w, err = svc.SetSalary(ctx, "usr_1", 500)
	if err != nil {
		t.Fatalf("SetSalary failed: %v", err)
	}
	if w.Salary != "5.00" {
		t.Errorf("salary = %s, want 5.00", w.Salary)
	}
	assertState(t, w, "105.00", "0.00")
}

func TestZeroAllSalaries(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	mustCreate(t, svc, "usr_2")
	ctx := context.Background()
	svc.SetSalary(ctx, "usr_1", 2000)
	svc.SetSalary(ctx, "usr_2", 3000)

	n, err := svc.ZeroAllSalaries(ctx)
	if err != nil {
		t.Fatalf("ZeroAllSalaries failed: %v", err)
	}
	if n != 2 {
		t.Errorf("zeroed %d wallets, want 2", n)
	}

	w, _ := svc.Get(ctx, "usr_1")
	if w.Salary != "0.00" {
		t.Errorf("salary = %s, want 0.00", w.Salary)
	}
	// Zeroing salary is a reset, not a correction: balance keeps the payout
	if w.Balance != "120.00" {
		t.Errorf("balance = %s, want 120.00", w.Balance)
	}
}

func TestService_Validation(t *testing.T) {
	svc, _ := newTestService(nil)
	mustCreate(t, svc, "usr_1")
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "usr_1", 0); err != ErrInvalidAmount {
		t.Errorf("Credit(0) = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Debit(ctx, "usr_1", -100); err != ErrInvalidAmount {
		t.Errorf("Debit(-100) = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.SetCreditScore(ctx, "usr_1", 150); err != ErrInvalidScore {
		t.Errorf("SetCreditScore(150) = %v, want ErrInvalidScore", err)
	}
	if _, err := svc.SetSalary(ctx, "usr_1", -1); err != ErrInvalidAmount {
		t.Errorf("SetSalary(-1) = %v, want ErrInvalidAmount", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(nil)
	if _, err := svc.Get(context.Background(), "usr_missing"); err != ErrWalletNotFound {
		t.Errorf("Get missing = %v, want ErrWalletNotFound", err)
	}
}

func TestSelectPack(t *testing.T) {
	opts := []PackOption{
		{ID: "bronze", USDValue: 5000, Active: true},
		{ID: "silver", USDValue: 20000, Active: true},
		{ID: "gold", USDValue: 50000, Active: true},
		{ID: "legacy", USDValue: 1000, Active: false},
	}

	tests := []struct {
		name    string
		balance int64
		want    string
	}{
		{"qualifies for gold", 60000, "gold"},
		{"qualifies for silver", 30000, "silver"},
		{"exact boundary", 20000, "silver"},
		{"below all, cheapest active", 100, "bronze"},
		{"zero balance, cheapest active", 0, "bronze"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectPack(opts, tt.balance)
			if !ok {
				t.Fatal("SelectPack returned ok=false")
			}
			if got != tt.want {
				t.Errorf("SelectPack(%d) = %s, want %s", tt.balance, got, tt.want)
			}
		})
	}

	if _, ok := SelectPack([]PackOption{{ID: "x", USDValue: 100, Active: false}}, 500); ok {
		t.Error("SelectPack with no active packs should return ok=false")
	}
}

func TestCreate_AutoAssignsPack(t *testing.T) {
	packs := &fakePacks{opts: []PackOption{
		{ID: "starter", USDValue: 0, Active: true},
		{ID: "pro", USDValue: 10000, Active: true},
	}}
	svc, _ := newTestService(packs)

	w := mustCreate(t, svc, "usr_1")
	if w.PackID != "starter" {
		t.Errorf("pack = %q, want starter", w.PackID)
	}
}

func TestCredit_UpgradesOnlyWhenPackInactive(t *testing.T) {
	packs := &fakePacks{opts: []PackOption{
		{ID: "starter", USDValue: 0, Active: true},
		{ID: "pro", USDValue: 10000, Active: true},
	}}
	svc, _ := newTestService(packs)
	mustCreate(t, svc, "usr_1")

	// Balance now qualifies for pro, but the active starter pack sticks.
	w, _ := svc.Credit(context.Background(), "usr_1", 20000)
	if w.PackID != "starter" {
		t.Errorf("pack = %q, want starter (no auto-upgrade while pack active)", w.PackID)
	}

	// Deactivate starter: the next mutation reassigns against the balance.
	packs.opts[0].Active = false
	w, _ = svc.Credit(context.Background(), "usr_1", 100)
	if w.PackID != "pro" {
		t.Errorf("pack = %q, want pro after starter deactivated", w.PackID)
	}
}

func TestReassignPack(t *testing.T) {
	packs := &fakePacks{opts: []PackOption{
		{ID: "starter", USDValue: 0, Active: true},
		{ID: "pro", USDValue: 10000, Active: true},
	}}
	svc, _ := newTestService(packs)
	mustCreate(t, svc, "usr_1")
	mustCreate(t, svc, "usr_2")
	ctx := context.Background()
	svc.Credit(ctx, "usr_1", 50000)

	// Pack goes away: wallets referencing it re-run selection on balance.
	packs.opts[0].Active = false
	n, err := svc.ReassignPack(ctx, "starter")
	if err != nil {
		t.Fatalf("ReassignPack failed: %v", err)
	}
	if n != 2 {
		t.Errorf("reassigned %d wallets, want 2", n)
	}

	w1, _ := svc.Get(ctx, "usr_1")
	if w1.PackID != "pro" {
		t.Errorf("usr_1 pack = %q, want pro", w1.PackID)
	}
	w2, _ := svc.Get(ctx, "usr_2")
	if w2.PackID != "pro" {
		t.Errorf("usr_2 pack = %q, want pro (cheapest active)", w2.PackID)
	}
}
