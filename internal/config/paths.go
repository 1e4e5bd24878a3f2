package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "DATASTACK_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "datastack.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "datastack"
)

// FindConfigPath searches for config file in priority order:
// 1. $DATASTACK_CONFIG (explicit path)
// 2. ./datastack.yaml (working directory)
// 3. $XDG_CONFIG_HOME/datastack/config.yaml
// 4. ~/.config/datastack/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	return ""
}

// DefaultConfigPath returns the preferred location for a new config file:
// the working directory, so a project carries its own store config.
func DefaultConfigPath() string {
	return ConfigFileName
}

// DocumentsDir is the per-user documents directory where durable stores
// live unless store.dir says otherwise.
func DocumentsDir() string {
	if dir := os.Getenv("XDG_DOCUMENTS_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Documents")
	}
	return "."
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
