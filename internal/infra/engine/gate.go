package engine

import (
	"context"
	"time"

	"github.com/tutu-network/aigov/internal/domain"
	"github.com/tutu-network/aigov/internal/infra/clock"
)

// DefaultDeadline is the longest an inference pass may take and still be
// useful.
const DefaultDeadline = 50 * time.Millisecond

// Gate times one inference call and judges it against a fixed deadline.
// It observes elapsed time after the fact; it never cancels a slow call.
type Gate struct {
	engine   Engine
	deadline time.Duration
	clock    clock.Clock
}

// NewGate wraps e. A non-positive deadline selects DefaultDeadline.
func NewGate(e Engine, deadline time.Duration, clk clock.Clock) *Gate {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Gate{engine: e, deadline: deadline, clock: clk}
}

// Deadline returns the configured deadline.
func (g *Gate) Deadline() time.Duration { return g.deadline }

// Run invokes the engine once. A late result is dropped; an on-time
// result is not retained either, only the verdict is returned.
func (g *Gate) Run(ctx context.Context) domain.InferenceOutcome {
	start := g.clock.Now()
	_, err := g.engine.RunOnce(ctx)
	elapsed := g.clock.Now().Sub(start)

	out := domain.InferenceOutcome{
		Elapsed:       elapsed,
		ElapsedMillis: elapsed.Milliseconds(),
		Err:           err,
	}
	if err == nil {
		out.WithinDeadline = WithinDeadline(out.ElapsedMillis, g.deadline)
	}
	return out
}

// WithinDeadline reports whether a pass measured at elapsedMillis meets
// the deadline. The boundary is inclusive.
func WithinDeadline(elapsedMillis int64, deadline time.Duration) bool {
	return elapsedMillis <= deadline.Milliseconds()
}
