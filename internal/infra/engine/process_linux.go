//go:build linux

package engine

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the inference binary in its own process group so
// a terminal SIGINT aimed at the daemon does not kill a pass mid-flight.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
