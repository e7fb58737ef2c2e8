// Package paths provides XDG-compliant path resolution for relic.
//
// Resolution order:
// 1. RELIC_HOME (portable root) → $RELIC_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/relic
// 3. Platform defaults → ~/.config/relic, ~/.local/share/relic, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if relicHome := os.Getenv("RELIC_HOME"); relicHome != "" {
		return filepath.Join(relicHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if relicHome := os.Getenv("RELIC_HOME"); relicHome != "" {
		return filepath.Join(relicHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// getRuntimeHome returns the base runtime directory used for sockets and
// flush cookies. Falls back to the state home when XDG_RUNTIME_DIR is unset.
func getRuntimeHome() string {
	if relicHome := os.Getenv("RELIC_HOME"); relicHome != "" {
		return filepath.Join(relicHome, "run")
	}
	if xdgRuntimeDir := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntimeDir != "" {
		return xdgRuntimeDir
	}
	return getStateHome()
}

// ConfigDir returns the relic configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "relic")
}

// StateDir returns the relic state directory (logs, pid files).
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "relic")
}

// RuntimeDir returns the relic runtime directory (sockets, cookies).
func RuntimeDir() string {
	base := getRuntimeHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "relic")
}

// SocketPath returns the path of the daemon's Unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "relicd.sock")
}

// PidFilePath returns the path of the daemon's pid file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "relicd.pid")
}

// LogsDir returns the directory where component log files are written.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// CookieDir returns the directory used for flush cookie files. The directory
// is watched by the filesystem event source, so creating a cookie here and
// waiting for its event establishes an ordering barrier with all earlier
// filesystem events.
func CookieDir() string {
	return filepath.Join(RuntimeDir(), "cookies")
}
