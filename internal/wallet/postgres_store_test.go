//go:build integration

package wallet

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*PostgresStore, *sql.DB, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	// Pack auto-assignment joins the packs table, which belongs to the
	// packs store. Create the columns this store reads.
	db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS packs (
		id             VARCHAR(40) PRIMARY KEY,
		name           VARCHAR(100) NOT NULL,
		usd_value      NUMERIC(12,2) NOT NULL DEFAULT 0,
		daily_missions INTEGER NOT NULL,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE
	)`)

	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM wallets")
		db.ExecContext(ctx, "DELETE FROM packs")
		db.Close()
	}

	return store, db, cleanup
}

func seedPack(t *testing.T, db *sql.DB, id, usdValue string, active bool) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO packs (id, name, usd_value, daily_missions, is_active)
		VALUES ($1, $1, $2, 30, $3)
		ON CONFLICT (id) DO UPDATE SET usd_value = EXCLUDED.usd_value, is_active = EXCLUDED.is_active
	`, id, usdValue, active)
	if err != nil {
		t.Fatalf("Failed to seed pack: %v", err)
	}
}

func TestPostgres_CreateAndGet(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	w, err := store.Create(ctx, "usr_pg_1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if w.Balance != "0.00" || w.OnHold != "0.00" {
		t.Errorf("Expected zero wallet, got balance %s hold %s", w.Balance, w.OnHold)
	}
	if w.CreditScore != 100 {
		t.Errorf("Expected credit score 100, got %v", w.CreditScore)
	}

	if _, err := store.Create(ctx, "usr_pg_1"); err != ErrWalletExists {
		t.Errorf("Expected ErrWalletExists on duplicate create, got %v", err)
	}

	got, err := store.Get(ctx, "usr_pg_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "usr_pg_1" {
		t.Errorf("Expected user id usr_pg_1, got %s", got.UserID)
	}
}

func TestPostgres_CreditAssignsPack(t *testing.T) {
	store, db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedPack(t, db, "pk_starter", "50.00", true)
	seedPack(t, db, "pk_pro", "500.00", true)

	// A fresh wallet can't afford any pack, so it lands on the cheapest.
	w, err := store.Create(ctx, "usr_pg_2")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if w.PackID != "pk_starter" {
		t.Errorf("Expected fallback pack pk_starter, got %q", w.PackID)
	}

	// Funding past the pro threshold upgrades only if the current pack
	// went away; an active assignment is sticky.
	w, err = store.Credit(ctx, "usr_pg_2", 60000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if w.Balance != "600.00" {
		t.Errorf("Expected balance 600.00, got %s", w.Balance)
	}
	if w.PackID != "pk_starter" {
		t.Errorf("Expected sticky pack pk_starter, got %q", w.PackID)
	}
}

func TestPostgres_DebitInsolvencyHold(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := store.Create(ctx, "usr_pg_3"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Credit(ctx, "usr_pg_3", 10000); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// $150 debit against $100: balance goes to the deficit, the full
	// amount is reserved.
	w, err := store.Debit(ctx, "usr_pg_3", 15000)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if w.Balance != "-50.00" {
		t.Errorf("Expected balance -50.00, got %s", w.Balance)
	}
	if w.OnHold != "150.00" {
		t.Errorf("Expected on hold 150.00, got %s", w.OnHold)
	}

	// A partial credit clears deficit first and leaves the hold alone.
	w, err = store.Credit(ctx, "usr_pg_3", 3000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if w.Balance != "-20.00" || w.OnHold != "150.00" {
		t.Errorf("Expected -20.00/150.00, got %s/%s", w.Balance, w.OnHold)
	}

	// Reaching zero releases the hold back into the balance.
	w, err = store.Credit(ctx, "usr_pg_3", 2000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if w.Balance != "150.00" || w.OnHold != "0.00" {
		t.Errorf("Expected 150.00/0.00 after recovery, got %s/%s", w.Balance, w.OnHold)
	}
}

func TestPostgres_ReassignPack(t *testing.T) {
	store, db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedPack(t, db, "pk_gone", "10.00", true)
	seedPack(t, db, "pk_stay", "20.00", true)

	if _, err := store.Create(ctx, "usr_pg_4"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.SetPack(ctx, "usr_pg_4", "pk_gone"); err != nil {
		t.Fatalf("SetPack failed: %v", err)
	}
	if _, err := store.Create(ctx, "usr_pg_5"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.SetPack(ctx, "usr_pg_5", "pk_gone"); err != nil {
		t.Fatalf("SetPack failed: %v", err)
	}

	// Deactivate the pack, then reassign everyone referencing it.
	if _, err := db.ExecContext(ctx, `UPDATE packs SET is_active = FALSE WHERE id = 'pk_gone'`); err != nil {
		t.Fatalf("Failed to deactivate pack: %v", err)
	}

	n, err := store.ReassignPack(ctx, "pk_gone")
	if err != nil {
		t.Fatalf("ReassignPack failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 wallets reassigned, got %d", n)
	}

	for _, id := range []string{"usr_pg_4", "usr_pg_5"} {
		w, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if w.PackID != "pk_stay" {
			t.Errorf("Expected %s on pk_stay, got %q", id, w.PackID)
		}
	}
}

func TestPostgres_SalaryLifecycle(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := store.Create(ctx, "usr_pg_6"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Salary flows through the balance.
	w, err := store.SetSalary(ctx, "usr_pg_6", 2500)
	if err != nil {
		t.Fatalf("SetSalary failed: %v", err)
	}
	if w.Salary != "25.00" || w.Balance != "25.00" {
		t.Errorf("Expected salary and balance 25.00, got %s/%s", w.Salary, w.Balance)
	}

	// The daily reset zeroes salary columns without touching balances.
	n, err := store.ZeroAllSalaries(ctx)
	if err != nil {
		t.Fatalf("ZeroAllSalaries failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 salary zeroed, got %d", n)
	}

	w, err = store.Get(ctx, "usr_pg_6")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if w.Salary != "0.00" {
		t.Errorf("Expected salary 0.00 after reset, got %s", w.Salary)
	}
	if w.Balance != "25.00" {
		t.Errorf("Expected balance untouched at 25.00, got %s", w.Balance)
	}
}
