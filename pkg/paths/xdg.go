// Package paths provides XDG-compliant path resolution for watchpost.
//
// Resolution order:
// 1. WATCHPOST_HOME (portable root) → $WATCHPOST_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/watchpost
// 3. Platform defaults → ~/.config/watchpost, ~/.local/state/watchpost
package paths

import (
	"os"
	"path/filepath"
)

const appName = "watchpost"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("WATCHPOST_HOME"); home != "" {
		return filepath.Join(home, "config")
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
	if home := os.Getenv("WATCHPOST_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the watchpost configuration directory.
// Holds watchpost.yml, settings.json and form_config.json by default.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the watchpost state directory.
// Used for the pid file and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory used by the default file log sink.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// PidFilePath returns the path to the station PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "watchpost.pid")
}

// EnsureDirs creates all watchpost directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
