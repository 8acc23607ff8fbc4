//go:build unix

// Package osutil holds the platform specific parts of running step commands.
package osutil

import (
	"os/exec"
	"syscall"
)

// KillGroupOnCancel runs cmd in its own process group and makes context
// cancellation kill the whole group, so background children started by a
// shell step do not outlive the run. Must be called before cmd.Start().
func KillGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
