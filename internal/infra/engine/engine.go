// Package engine provides the inference engine abstraction the governor
// drives, plus the deadline gate that judges each admitted call.
// Model loading and the forward pass live behind Engine; the governor
// only sets a thread budget and asks for one run per cycle.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tutu-network/aigov/internal/domain"
)

// Engine is the governor's view of the inference runtime. Both calls are
// synchronous and cannot be interrupted once started.
type Engine interface {
	// ConfigureConcurrency sets the thread budget for subsequent runs.
	// A budget of 0 means the engine should stay idle.
	ConfigureConcurrency(threads int)

	// RunOnce performs a single inference pass.
	RunOnce(ctx context.Context) (Result, error)
}

// Result is the opaque output of one inference pass. The governor never
// inspects it beyond counting bytes for logs.
type Result struct {
	Output  []byte
	Threads int
}

// Options selects and configures a backend.
type Options struct {
	Backend          string // "mock" or "exec"
	Command          string
	Args             []string
	SimulatedLatency time.Duration
}

// New builds the configured backend.
func New(opts Options) (Engine, error) {
	switch opts.Backend {
	case "", "mock":
		return NewMockEngine(opts.SimulatedLatency), nil
	case "exec":
		return NewExecEngine(opts.Command, opts.Args)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, opts.Backend)
	}
}
