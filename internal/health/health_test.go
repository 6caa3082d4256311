package health

import (
	"context"
	"testing"
	"time"
)

func TestCheckAll_Empty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("empty registry should report healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("expected no statuses, got %d", len(statuses))
	}
}

func TestCheckAll_RegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(context.Context) Status { return OK("database") })
	r.Register("realtime", func(context.Context) Status { return OK("realtime") })
	r.Register("payout", func(context.Context) Status { return OK("payout") })

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("all-passing registry should report healthy")
	}
	want := []string{"database", "realtime", "payout"}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d statuses, got %d", len(want), len(statuses))
	}
	for i, name := range want {
		if statuses[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, statuses[i].Name)
		}
	}
}

func TestCheckAll_OneFailureDegrades(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(context.Context) Status { return OK("database") })
	r.Register("realtime", func(context.Context) Status { return Fail("realtime", "hub stopped") })

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Error("registry with a failing probe should not report healthy")
	}
	if statuses[1].Detail != "hub stopped" {
		t.Errorf("expected failure detail to survive, got %q", statuses[1].Detail)
	}
}

func TestCheckAll_ProbesRunConcurrently(t *testing.T) {
	r := NewRegistry()
	slow := func(name string) Checker {
		return func(ctx context.Context) Status {
			time.Sleep(50 * time.Millisecond)
			return OK(name)
		}
	}
	r.Register("a", slow("a"))
	r.Register("b", slow("b"))
	r.Register("c", slow("c"))

	start := time.Now()
	r.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > 120*time.Millisecond {
		t.Errorf("probes appear to run sequentially: took %v", elapsed)
	}
}

func TestRegister_ReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(context.Context) Status { return Fail("database", "down") })
	r.Register("realtime", func(context.Context) Status { return OK("realtime") })
	r.Register("database", func(context.Context) Status { return OK("database") })

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Error("replaced probe should be the one that runs")
	}
	if statuses[0].Name != "database" {
		t.Errorf("replaced probe lost its position: first is %s", statuses[0].Name)
	}
}
