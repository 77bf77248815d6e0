package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "circuits.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestInitializeCircuitIsIdempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	def := CircuitState{
		CircuitID:        "provider:primary",
		CircuitType:      CircuitTypeProvider,
		DefaultState:     StateOn,
		FailureThreshold: 3,
	}
	if err := repo.InitializeCircuit(ctx, def); err != nil {
		t.Fatalf("InitializeCircuit: %v", err)
	}

	// Mutate, then re-initialize; the row must keep its mutated state.
	off := StateOff
	if err := repo.SetState(ctx, "provider:primary", StateUpdate{State: &off}); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := repo.InitializeCircuit(ctx, def); err != nil {
		t.Fatalf("re-InitializeCircuit: %v", err)
	}

	cs, err := repo.GetState(ctx, "provider:primary")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if cs.State != StateOff {
		t.Errorf("state = %q, want off (initialize must not reset existing rows)", cs.State)
	}
	if cs.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d, want 3", cs.FailureThreshold)
	}
}

func TestGetStateNotFound(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.GetState(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("GetState unknown = %v, want ErrNotFound", err)
	}
}

func TestRecordFailureAndSuccessCounters(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.InitializeCircuit(ctx, CircuitState{
		CircuitID: "provider:alt", CircuitType: CircuitTypeProvider,
		DefaultState: StateOn, FailureThreshold: 5,
	}); err != nil {
		t.Fatalf("InitializeCircuit: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := repo.RecordFailure(ctx, "provider:alt", now)
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if got != want {
			t.Errorf("failure count = %d, want %d", got, want)
		}
	}
	if got, err := repo.RecordSuccess(ctx, "provider:alt", now); err != nil || got != 1 {
		t.Fatalf("RecordSuccess = %d, %v; want 1, nil", got, err)
	}

	cs, err := repo.GetState(ctx, "provider:alt")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if cs.LastFailureAt == nil || cs.LastSuccessAt == nil {
		t.Fatal("expected failure and success timestamps to be stamped")
	}

	if err := repo.ResetCounters(ctx, "provider:alt"); err != nil {
		t.Fatalf("ResetCounters: %v", err)
	}
	cs, err = repo.GetState(ctx, "provider:alt")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if cs.FailureCount != 0 || cs.SuccessCount != 0 {
		t.Errorf("counters = %d/%d after reset, want 0/0", cs.FailureCount, cs.SuccessCount)
	}
}

func TestSetStatePartialUpdate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.InitializeCircuit(ctx, CircuitState{
		CircuitID: "kill_switch_global", CircuitType: CircuitTypeManual, DefaultState: StateOn,
	}); err != nil {
		t.Fatalf("InitializeCircuit: %v", err)
	}

	off := StateOff
	changed := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.SetState(ctx, "kill_switch_global", StateUpdate{State: &off, StateChangedAt: &changed}); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	cs, err := repo.GetState(ctx, "kill_switch_global")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if cs.State != StateOff {
		t.Errorf("state = %q, want off", cs.State)
	}
	if cs.StateChangedAt == nil || !cs.StateChangedAt.Equal(changed) {
		t.Errorf("state_changed_at = %v, want %v", cs.StateChangedAt, changed)
	}
	if cs.DefaultState != StateOn {
		t.Errorf("default_state mutated to %q", cs.DefaultState)
	}

	if err := repo.SetState(ctx, "missing", StateUpdate{State: &off}); err != ErrNotFound {
		t.Errorf("SetState on missing row = %v, want ErrNotFound", err)
	}

	all, err := repo.GetAllStates(ctx)
	if err != nil {
		t.Fatalf("GetAllStates: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("GetAllStates returned %d rows, want 1", len(all))
	}
}
