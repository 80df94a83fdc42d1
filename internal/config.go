package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Watch strategies.
const (
	WatchStrategyPoll   = "poll"
	WatchStrategyNative = "native"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Profiles ProfilesConfig    `yaml:"profiles"`
	Watch    WatchConfig       `yaml:"watch"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Profiles.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ProfilesConfig holds the path to the employee profiles directory tree.
// Task dashboards live at <path>/employee_profiles/<id>/taskdashboard.json.
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the profiles configuration.
func (c *ProfilesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WatchConfig selects the change-detection strategy.
//
// Strategy controls how dashboard mutations are observed:
//   - "poll" (default): interval scan of the profiles tree. Chosen as the
//     default because native change events are unreliable on network mounts.
//   - "native": fsnotify watcher with a polling sweep disabled.
type WatchConfig struct {
	Strategy   string `yaml:"strategy"`
	IntervalMS int    `yaml:"interval_ms"`
}

// Interval returns the polling interval as a duration.
func (c *WatchConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	if c.Strategy == "" {
		c.Strategy = WatchStrategyPoll
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.Required, validation.In(WatchStrategyPoll, WatchStrategyNative)),
	); err != nil {
		return err
	}
	if c.Strategy == WatchStrategyPoll && c.IntervalMS <= 0 {
		return fmt.Errorf("watch: strategy is %q but interval_ms is not positive", WatchStrategyPoll)
	}
	return nil
}

// SQLiteConfig holds the pending-notification database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Profiles: ProfilesConfig{
			Path: "./data",
		},
		Watch: WatchConfig{
			Strategy:   WatchStrategyPoll,
			IntervalMS: 2000,
		},
		SQLite: SQLiteConfig{
			Path: "./taskwire.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
