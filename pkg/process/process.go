// Package process contains small helpers for inspecting OS processes.
package process

import (
	"os"
	"syscall"
)

// IsProcessAlive checks if a process with the given PID is still running.
// It uses signal 0, which probes for existence without delivering a signal,
// and works on Unix-like systems (macOS, Linux).
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// FindProcess never fails on Unix.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))

	// nil means alive with permission; EPERM means alive but owned by
	// another user. ESRCH means the process is gone.
	return err == nil || os.IsPermission(err)
}
