// Package infra implements infrastructure concerns (store, process, clock, probe, I/O adapters).
package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as a regular user with per-user state
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root with machine-wide state
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths that depend on the execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // Where the gate store and its key live
	LogPath string // Daemon log file
	IsRoot  bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:    ExecModeSystem,
			DataDir: "/var/lib/feedgate",
			LogPath: "/var/log/feedgate.log",
			IsRoot:  true,
		}
	}
	return GetUserModeConfig()
}

// GetUserModeConfig returns user mode paths regardless of current euid.
// Under sudo the invoking user's home is used.
func GetUserModeConfig() *ExecModeConfig {
	home := GetRealUserHome()
	return &ExecModeConfig{
		Mode:    ExecModeUser,
		DataDir: filepath.Join(home, ".feedgate"),
		LogPath: "/var/tmp/feedgate.log",
		IsRoot:  os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root, machine-wide state)"
	case ExecModeUser:
		return "user (per-user state)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
