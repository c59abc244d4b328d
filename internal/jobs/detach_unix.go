//go:build unix

package jobs

import (
	"os/exec"
	"syscall"
)

// detach puts the worker in its own process group so it outlives the
// caller's terminal and signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
