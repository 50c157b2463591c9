package engine

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/tutu-network/aigov/internal/domain"
)

// ─── Exec Engine ────────────────────────────────────────────────────────────
// Runs an external inference binary once per RunOnce, passing the current
// thread budget as --threads N. The binary owns the model and input.

// ExecEngine runs a one-shot inference command.
type ExecEngine struct {
	mu      sync.Mutex
	command string
	args    []string
	threads int
}

// NewExecEngine validates the command path.
func NewExecEngine(command string, args []string) (*ExecEngine, error) {
	if command == "" {
		return nil, domain.ErrNoEngineCommand
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("locate inference binary %q: %w", command, err)
	}
	return &ExecEngine{command: path, args: args}, nil
}

func (e *ExecEngine) ConfigureConcurrency(threads int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threads = threads
}

// RunOnce runs the command to completion. The context only bounds the
// process start; cancelling it does not kill a pass already running.
func (e *ExecEngine) RunOnce(ctx context.Context) (Result, error) {
	e.mu.Lock()
	threads := e.threads
	e.mu.Unlock()

	args := append(append([]string{}, e.args...), "--threads", strconv.Itoa(threads))
	cmd := exec.CommandContext(context.WithoutCancel(ctx), e.command, args...)
	configureProcess(cmd)

	stdout := &limitedBuffer{max: 64 * 1024}
	stderr := &limitedBuffer{max: 8192}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Result{}, fmt.Errorf("%w: %v: %s", domain.ErrEngineFailed, err, msg)
		}
		return Result{}, fmt.Errorf("%w: %v", domain.ErrEngineFailed, err)
	}
	return Result{Output: []byte(stdout.String()), Threads: threads}, nil
}

// limitedBuffer keeps the last max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

var _ io.Writer = (*limitedBuffer)(nil)

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
