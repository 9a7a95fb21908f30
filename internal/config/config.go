// Package config provides configuration types, defaults, and persistence.
// The configuration is static: it is loaded once at startup and never hot
// reloaded.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chronotable/timecard/internal/tracing"
)

// Config holds all configuration options.
type Config struct {
	LocalRoot   string `mapstructure:"local_root"`
	NetworkRoot string `mapstructure:"network_root"`
	BackupDir   string `mapstructure:"backup_dir"`
	LogPath     string `mapstructure:"log_path"`

	User          UserConfig     `mapstructure:"user"`
	Network       NetworkConfig  `mapstructure:"network"`
	Sync          SyncConfig     `mapstructure:"sync"`
	Notifications NotifyConfig   `mapstructure:"notifications"`
	Diagnostics   DiagConfig     `mapstructure:"diagnostics"`
	Tracing       tracing.Config `mapstructure:"tracing"`
}

// UserConfig identifies the workstation's user.
type UserConfig struct {
	Username        string `mapstructure:"username"`
	UserID          int    `mapstructure:"user_id"`
	Name            string `mapstructure:"name"`
	Role            string `mapstructure:"role"` // USER, TEAM_LEADER, ADMIN
	ScheduleHours   int    `mapstructure:"schedule_hours"`
	PaidHolidayDays int    `mapstructure:"paid_holiday_days"`
}

// NetworkConfig tunes the liveness monitor.
type NetworkConfig struct {
	MonitorInterval    time.Duration `mapstructure:"monitor_interval"`
	DebounceIntervalMs int           `mapstructure:"debounce_interval_ms"`
	JitterThreshold    int           `mapstructure:"jitter_threshold"`
	CheckRetries       int           `mapstructure:"check_retries"`
}

// SyncConfig tunes the background sync worker.
type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
}

// NotifyConfig tunes the notification queue.
type NotifyConfig struct {
	HourlyIntervalMinutes int `mapstructure:"hourly_interval_minutes"`
}

// DiagConfig configures the local diagnostics endpoint.
type DiagConfig struct {
	ListenAddr string `mapstructure:"listen_addr"` // empty disables the endpoint
}

// Defaults returns the configuration used when no file overrides it. The
// two roots have no sensible default and stay empty.
func Defaults() Config {
	return Config{
		User: UserConfig{
			Role:          "USER",
			ScheduleHours: 8,
		},
		Network: NetworkConfig{
			MonitorInterval:    time.Hour,
			DebounceIntervalMs: 10_000,
			JitterThreshold:    3,
			CheckRetries:       3,
		},
		Sync: SyncConfig{
			Enabled:          true,
			Interval:         10 * time.Minute,
			DebounceInterval: 2 * time.Second,
		},
		Notifications: NotifyConfig{
			HourlyIntervalMinutes: 60,
		},
		Diagnostics: DiagConfig{
			ListenAddr: "127.0.0.1:7466",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the fields without defaults.
func (c Config) Validate() error {
	if c.LocalRoot == "" {
		return fmt.Errorf("config: local_root is required")
	}
	if c.NetworkRoot == "" {
		return fmt.Errorf("config: network_root is required")
	}
	if c.User.Username == "" {
		return fmt.Errorf("config: user.username is required")
	}
	if c.User.UserID <= 0 {
		return fmt.Errorf("config: user.user_id must be positive")
	}
	switch c.User.Role {
	case "USER", "TEAM_LEADER", "ADMIN":
	default:
		return fmt.Errorf("config: unknown role %q", c.User.Role)
	}
	if c.User.ScheduleHours <= 0 || c.User.ScheduleHours > 24 {
		return fmt.Errorf("config: schedule_hours out of range: %d", c.User.ScheduleHours)
	}
	return nil
}

// EffectiveBackupDir returns the backup directory, defaulting to a backups
// folder under the local root.
func (c Config) EffectiveBackupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(c.LocalRoot, "backups")
}

// DefaultConfigDir returns ~/.config/timecard, or empty when the home
// directory is unavailable.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "timecard")
}

// WriteDefaultConfig writes a starter config file at path.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	content := `# timecard configuration
local_root: ""
network_root: ""

user:
  username: ""
  user_id: 0
  name: ""
  role: "USER"
  schedule_hours: 8
  paid_holiday_days: 21

network:
  monitor_interval: 1h
  debounce_interval_ms: 10000
  jitter_threshold: 3
  check_retries: 3

sync:
  enabled: true
  interval: 10m
  debounce_interval: 2s

notifications:
  hourly_interval_minutes: 60

diagnostics:
  listen_addr: "127.0.0.1:7466"

tracing:
  enabled: false
  exporter: file
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}
