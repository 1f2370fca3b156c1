//go:build windows

package executor

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func terminateProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func raiseInterrupt() {
	// No kill(2) equivalent worth emulating here; exit with the
	// conventional interrupt status instead.
	os.Exit(130)
}
