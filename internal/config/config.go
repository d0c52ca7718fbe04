// Package config handles the XDG configuration directory, file paths and
// settings.
package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application directory name.
	AppName = "tasksync"

	// SettingsFile is the settings filename.
	SettingsFile = "config.yaml"

	// SessionCacheFile is the local session cache database.
	SessionCacheFile = "session.db"

	// AuthSessionFile is the auth provider's persisted sign-in.
	AuthSessionFile = "auth.json"

	// AccountsFile is the local provider's account database.
	AccountsFile = "accounts.db"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded by Load. Nil until then.
	Settings *Settings
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/tasksync or $HOME/.config/tasksync.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{Dir: dir}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SettingsPath returns the path to the settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// SessionCachePath returns the path to the session cache database.
func (c *Config) SessionCachePath() string {
	return filepath.Join(c.Dir, SessionCacheFile)
}

// AuthSessionPath returns the path to the persisted provider session.
func (c *Config) AuthSessionPath() string {
	return filepath.Join(c.Dir, AuthSessionFile)
}

// AccountsPath returns the path to the local account database.
func (c *Config) AccountsPath() string {
	return filepath.Join(c.Dir, AccountsFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSettings checks if the settings file exists.
func (c *Config) HasSettings() bool {
	_, err := os.Stat(c.SettingsPath())
	return err == nil
}

// HasAuthSession checks if a persisted provider session exists.
func (c *Config) HasAuthSession() bool {
	_, err := os.Stat(c.AuthSessionPath())
	return err == nil
}
