package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderLocal           = "local"
	ProviderIdentityToolkit = "identitytoolkit"
)

// Remote backend names.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Settings are read from config.yaml, overridden by environment variables.
type Settings struct {
	Auth   AuthSettings   `yaml:"auth"`
	Remote RemoteSettings `yaml:"remote"`
	Log    LogSettings    `yaml:"log"`
}

// AuthSettings select and configure the authentication provider.
type AuthSettings struct {
	Provider string `yaml:"provider" env:"TASKSYNC_AUTH_PROVIDER" env-default:"local"`
	APIKey   string `yaml:"api_key" env:"TASKSYNC_API_KEY"`
	Endpoint string `yaml:"endpoint" env:"TASKSYNC_AUTH_ENDPOINT"`
	TokenURL string `yaml:"token_url" env:"TASKSYNC_TOKEN_URL"`
}

// RemoteSettings select and configure the remote task store.
type RemoteSettings struct {
	Backend  string        `yaml:"backend" env:"TASKSYNC_REMOTE" env-default:"redis"`
	RedisURL string        `yaml:"redis_url" env:"TASKSYNC_REDIS_URL" env-default:"redis://localhost:6379/0"`
	Timeout  time.Duration `yaml:"timeout" env:"TASKSYNC_REMOTE_TIMEOUT" env-default:"5s"`
}

// LogSettings configure the logger. Level is empty unless set explicitly.
type LogSettings struct {
	Level  string `yaml:"level" env:"TASKSYNC_LOG_LEVEL"`
	Format string `yaml:"format" env:"TASKSYNC_LOG_FORMAT" env-default:"text"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Auth: AuthSettings{Provider: ProviderLocal},
		Remote: RemoteSettings{
			Backend:  BackendRedis,
			RedisURL: "redis://localhost:6379/0",
			Timeout:  5 * time.Second,
		},
		Log: LogSettings{Format: "text"},
	}
}

// Load reads the settings file if present, then the environment, and stores
// the result in c.Settings. A missing file is not an error.
func (c *Config) Load() (*Settings, error) {
	var s Settings
	var err error
	if c.HasSettings() {
		err = cleanenv.ReadConfig(c.SettingsPath(), &s)
	} else {
		err = cleanenv.ReadEnv(&s)
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	c.Settings = &s
	return &s, nil
}

// Validate checks enumerated values.
func (s *Settings) Validate() error {
	switch s.Auth.Provider {
	case ProviderLocal, ProviderIdentityToolkit:
	default:
		return fmt.Errorf("auth.provider must be %q or %q, got %q", ProviderLocal, ProviderIdentityToolkit, s.Auth.Provider)
	}
	switch s.Remote.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("remote.backend must be %q or %q, got %q", BackendRedis, BackendMemory, s.Remote.Backend)
	}
	if s.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive, got %s", s.Remote.Timeout)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", s.Log.Format)
	}
	return nil
}

// ErrSettingsExist is returned by WriteDefaultSettings when the file exists.
var ErrSettingsExist = errors.New("settings file already exists")

// WriteDefaultSettings writes DefaultSettings to the settings file.
func (c *Config) WriteDefaultSettings() error {
	if c.HasSettings() {
		return fmt.Errorf("%w: %s", ErrSettingsExist, c.SettingsPath())
	}
	if err := c.EnsureDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(DefaultSettings())
	if err != nil {
		return err
	}
	return os.WriteFile(c.SettingsPath(), data, 0600)
}
