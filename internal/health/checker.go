// Package health provides periodic health checks for the governor's
// sensors, control socket and journal.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultInterval is how often Run repeats the checks.
const DefaultInterval = 30 * time.Second

// Check defines a single named health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// TemperatureReader is the sensor slice the sensors check needs.
type TemperatureReader interface {
	ReadTemperature() (float64, error)
}

// Pinger is satisfied by the journal.
type Pinger interface {
	Ping() error
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	observer func(check string, healthy bool)
}

// New creates a checker from explicit checks.
func New(interval time.Duration, checks ...Check) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{interval: interval, checks: checks}
}

// NewChecker creates a checker with the standard checks: sensors,
// ipc_socket and journal. A nil journal skips the journal check.
func NewChecker(interval time.Duration, sensors TemperatureReader, socketPath string, journal Pinger) *Checker {
	checks := []Check{
		{
			Name: "sensors",
			CheckFn: func(ctx context.Context) error {
				_, err := sensors.ReadTemperature()
				return err
			},
		},
		{
			Name: "ipc_socket",
			CheckFn: func(ctx context.Context) error {
				return checkSocket(socketPath)
			},
		},
	}
	if journal != nil {
		checks = append(checks, Check{
			Name: "journal",
			CheckFn: func(ctx context.Context) error {
				return journal.Ping()
			},
		})
	}
	return New(interval, checks...)
}

// SetObserver registers a callback told about every check result. Call
// before Run.
func (c *Checker) SetObserver(fn func(check string, healthy bool)) { c.observer = fn }

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce executes every check once and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s
		if c.observer != nil {
			c.observer(s.Name, s.Healthy)
		}
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkSocket(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("check socket: %w", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s is not a socket", path)
	}
	return nil
}
