//go:build !linux

package engine

import "os/exec"

// configureProcess is a no-op off Linux.
func configureProcess(_ *exec.Cmd) {}
