package health

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutu-network/aigov/internal/domain"
)

type stubSensor struct{ err error }

func (s stubSensor) ReadTemperature() (float64, error) { return 42, s.err }

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

// listenSocket creates a live unix socket under a short temp dir.
func listenSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hc")
	if err != nil {
		t.Fatalf("MkdirTemp() error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return path
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(0, stubSensor{}, "/nonexistent", stubPinger{})
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}
}

func TestNewChecker_NoJournal(t *testing.T) {
	c := NewChecker(0, stubSensor{}, "/nonexistent", nil)
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(0, stubSensor{}, listenSocket(t), stubPinger{})
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(0, stubSensor{err: domain.ErrSensorUnavailable}, "/nonexistent", nil)

	// No statuses yet, so vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_Failures(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(0, stubSensor{err: domain.ErrSensorUnavailable}, plain, stubPinger{err: errors.New("closed")})
	c.RunOnce(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
	for _, s := range c.Statuses() {
		if s.Healthy {
			t.Errorf("check %q should fail", s.Name)
		}
		if s.Error == "" {
			t.Errorf("check %q has empty error", s.Name)
		}
	}
}

func TestChecker_Observer(t *testing.T) {
	c := New(time.Minute,
		Check{Name: "flaky", CheckFn: func(context.Context) error { return errors.New("down") }},
		Check{Name: "ok", CheckFn: func(context.Context) error { return nil }},
	)
	seen := map[string]bool{}
	c.SetObserver(func(name string, healthy bool) { seen[name] = healthy })

	c.RunOnce(context.Background())

	if healthy, ok := seen["flaky"]; !ok || healthy {
		t.Errorf("observer saw %v, want flaky=false", seen)
	}
	if healthy, ok := seen["ok"]; !ok || !healthy {
		t.Errorf("observer saw %v, want ok=true", seen)
	}
	if statuses := c.Statuses(); len(statuses) != 2 || statuses[0].Error != "down" {
		t.Errorf("Statuses() = %+v, want flaky error recorded", statuses)
	}
}

func TestChecker_StatusesIsCopy(t *testing.T) {
	c := New(0, Check{Name: "ok", CheckFn: func(context.Context) error { return nil }})
	c.RunOnce(context.Background())

	s := c.Statuses()
	s[0].Healthy = false
	if !c.IsHealthy() {
		t.Error("mutating Statuses() result leaked into checker")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := New(time.Hour, Check{Name: "ok", CheckFn: func(context.Context) error { return nil }})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Run checks immediately on start.
	deadline := time.Now().Add(2 * time.Second)
	for len(c.Statuses()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(c.Statuses()) != 1 {
		t.Fatal("Run() did not perform the initial check")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
