//go:build windows

// Package osutil holds the platform specific parts of running step commands.
package osutil

import (
	"os"
	"os/exec"
)

// KillGroupOnCancel kills cmd when its context is cancelled. Windows has no
// Unix-style process groups, so children of the shell may keep running.
func KillGroupOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
}
