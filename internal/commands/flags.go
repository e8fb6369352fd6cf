package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/colonyops/kash/internal/core/config"
	"github.com/colonyops/kash/internal/kash"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	Workspace  string
	JSON       bool

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// App is opened lazily by commands that touch the workspace.
	App *kash.App
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return config.DefaultConfigPath()
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/kash/kash.log
// On Linux: $XDG_STATE_HOME/kash/kash.log (defaults to ~/.local/state/kash/kash.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "kash", "kash.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "kash", "kash.log")
	}

	return filepath.Join(home, ".local", "state", "kash", "kash.log")
}
