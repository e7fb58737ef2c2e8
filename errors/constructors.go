package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *RelicError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *RelicError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// WatchConsumed creates an error for a second consumption of a watch session.
// The event stream is one-shot; starting two reconciliation loops against the
// same session is a programming error.
func WatchConsumed() *RelicError {
	return New(ErrCodeWatchConsumed, "watch session already consumed; a new session is required")
}

// ControlSend creates an error for a failed control message to the event source.
func ControlSend(op string, glob string, err error) *RelicError {
	relicErr := Wrap(err, ErrCodeControlSend, fmt.Sprintf("failed to send %s control message", op)).
		WithDetail("operation", op)
	if glob != "" {
		relicErr = relicErr.WithDetail("glob", glob)
	}
	return relicErr
}

// DaemonNotRunning creates an error for operations that require the daemon.
func DaemonNotRunning(socketPath string) *RelicError {
	return New(ErrCodeDaemonNotRunning,
		"relic daemon is not running; start it with 'relic daemon start'").
		WithDetail("socket", socketPath)
}

// DaemonConflict creates an error for a second daemon instance.
func DaemonConflict(pid int) *RelicError {
	return New(ErrCodeDaemonConflict,
		fmt.Sprintf("relic daemon already running with PID %d", pid)).
		WithDetail("pid", pid)
}

// APIStatus creates an error for an unexpected remote cache API status code.
func APIStatus(endpoint string, status int) *RelicError {
	return New(ErrCodeAPIStatus,
		fmt.Sprintf("remote cache API returned status %d for %s", status, endpoint)).
		WithDetail("endpoint", endpoint).
		WithDetail("status", status)
}
