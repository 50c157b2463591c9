package engine

import (
	"context"
	"sync"
	"time"
)

// ─── Mock Engine (for tests and hosts without an inference binary) ──────────

// MockEngine simulates an inference runtime with a fixed latency.
type MockEngine struct {
	mu      sync.Mutex
	latency time.Duration
	threads int
	runs    int
	configs []int

	// RunFunc, when set, replaces the simulated pass. Tests use it to
	// advance a fake clock or inject errors.
	RunFunc func(ctx context.Context) error
}

// NewMockEngine returns a mock whose RunOnce sleeps for latency.
func NewMockEngine(latency time.Duration) *MockEngine {
	return &MockEngine{latency: latency}
}

func (m *MockEngine) ConfigureConcurrency(threads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads = threads
	m.configs = append(m.configs, threads)
}

func (m *MockEngine) RunOnce(ctx context.Context) (Result, error) {
	m.mu.Lock()
	m.runs++
	threads := m.threads
	fn := m.RunFunc
	latency := m.latency
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return Result{}, err
		}
	} else if latency > 0 {
		time.Sleep(latency)
	}
	return Result{Output: []byte("mock"), Threads: threads}, nil
}

// Threads returns the most recent thread budget.
func (m *MockEngine) Threads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threads
}

// Runs returns how many times RunOnce was called.
func (m *MockEngine) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Configs returns every thread budget applied so far, oldest first.
func (m *MockEngine) Configs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.configs))
	copy(out, m.configs)
	return out
}
