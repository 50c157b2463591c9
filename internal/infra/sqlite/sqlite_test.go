package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/tutu-network/aigov/internal/domain"
)

func newTestDB(t *testing.T, maxRows int) *DB {
	t.Helper()
	db, err := Open(maxRows)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func cycleAt(i int) domain.Cycle {
	return domain.Cycle{
		At:             time.Unix(1700000000+int64(i), 0),
		TemperatureC:   50 + float64(i),
		CPULoadPercent: 10,
		Mode:           domain.ModeAuto,
		Decision: domain.PolicyDecision{
			ThreadBudget: 4, PollInterval: time.Second, Admitted: true, Band: domain.BandFull,
		},
		Outcome: &domain.InferenceOutcome{ElapsedMillis: 12, WithinDeadline: true},
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t, 0)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if db.maxRows != DefaultMaxRows {
		t.Errorf("maxRows = %d, want %d", db.maxRows, DefaultMaxRows)
	}
}

func TestOpen_IsolatedPerProcess(t *testing.T) {
	a := newTestDB(t, 10)
	b := newTestDB(t, 10)
	if err := a.RecordCycle(cycleAt(1)); err != nil {
		t.Fatalf("RecordCycle() error: %v", err)
	}
	got, err := b.RecentCycles(10)
	if err != nil {
		t.Fatalf("RecentCycles() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("fresh journal has %d cycles, want 0", len(got))
	}
}

// ─── Cycles ─────────────────────────────────────────────────────────────────

func TestRecordCycle_RoundTrip(t *testing.T) {
	db := newTestDB(t, 10)
	in := cycleAt(3)
	in.ID = "cycle-3"
	in.ManualTrigger = true
	if err := db.RecordCycle(in); err != nil {
		t.Fatalf("RecordCycle() error: %v", err)
	}

	got, err := db.RecentCycles(1)
	if err != nil {
		t.Fatalf("RecentCycles() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	c := got[0]
	if c.ID != "cycle-3" || c.TemperatureC != 53 || !c.ManualTrigger {
		t.Errorf("cycle = %+v", c)
	}
	if c.Decision != in.Decision {
		t.Errorf("Decision = %+v, want %+v", c.Decision, in.Decision)
	}
	if c.Outcome == nil || c.Outcome.ElapsedMillis != 12 || !c.Outcome.WithinDeadline {
		t.Errorf("Outcome = %+v", c.Outcome)
	}
	if !c.At.Equal(in.At) {
		t.Errorf("At = %v, want %v", c.At, in.At)
	}
}

func TestRecordCycle_PausedHasNoOutcome(t *testing.T) {
	db := newTestDB(t, 10)
	c := cycleAt(0)
	c.Decision = domain.PolicyDecision{PollInterval: 3 * time.Second, Band: domain.BandSurvival}
	c.Outcome = nil
	if err := db.RecordCycle(c); err != nil {
		t.Fatalf("RecordCycle() error: %v", err)
	}
	got, _ := db.RecentCycles(1)
	if len(got) != 1 || got[0].Outcome != nil {
		t.Errorf("paused cycle = %+v, want nil outcome", got)
	}
}

func TestRecentCycles_NewestFirstAndPruned(t *testing.T) {
	db := newTestDB(t, 5)
	for i := 0; i < 12; i++ {
		if err := db.RecordCycle(cycleAt(i)); err != nil {
			t.Fatalf("RecordCycle(%d) error: %v", i, err)
		}
	}

	got, err := db.RecentCycles(100)
	if err != nil {
		t.Fatalf("RecentCycles() error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5 after pruning", len(got))
	}
	if got[0].TemperatureC != 61 || got[4].TemperatureC != 57 {
		t.Errorf("order = %v..%v, want 61..57", got[0].TemperatureC, got[4].TemperatureC)
	}
}

// ─── Observer ───────────────────────────────────────────────────────────────

func TestObserveCycle_EmitsEvents(t *testing.T) {
	db := newTestDB(t, 10)

	late := cycleAt(1)
	late.Outcome = &domain.InferenceOutcome{ElapsedMillis: 51}
	late.ManualTrigger = true
	db.ObserveCycle(late)

	failed := cycleAt(2)
	failed.Outcome = &domain.InferenceOutcome{ElapsedMillis: 3, Err: errors.New("exit status 1")}
	failed.SensorFault = true
	db.ObserveCycle(failed)

	for kind, want := range map[string]int{
		domain.EventDeadlineMiss:   1,
		domain.EventTriggerHonored: 1,
		domain.EventSensorFault:    1,
	} {
		events, err := db.RecentEvents(kind, 10)
		if err != nil {
			t.Fatalf("RecentEvents(%s) error: %v", kind, err)
		}
		if len(events) != want {
			t.Errorf("%s events = %d, want %d", kind, len(events), want)
		}
	}

	all, _ := db.RecentEvents("", 10)
	if len(all) != 3 {
		t.Errorf("all events = %d, want 3", len(all))
	}

	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	want := Stats{Cycles: 2, Admitted: 2, Late: 1, Failed: 1, ManualTriggers: 1, SensorFaults: 1}
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
}

func TestStats_Empty(t *testing.T) {
	db := newTestDB(t, 10)
	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if s != (Stats{}) {
		t.Errorf("Stats() = %+v, want zero", s)
	}
}

func TestRecordEvent_Pruned(t *testing.T) {
	db := newTestDB(t, 3)
	for i := 0; i < 7; i++ {
		if err := db.RecordEvent(domain.EventModeChange, "FULL"); err != nil {
			t.Fatalf("RecordEvent() error: %v", err)
		}
	}
	events, _ := db.RecentEvents(domain.EventModeChange, 0)
	if len(events) != 3 {
		t.Errorf("events = %d, want 3", len(events))
	}
}
