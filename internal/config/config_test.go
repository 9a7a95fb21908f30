package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() Config {
	c := Defaults()
	c.LocalRoot = "/home/mihai/timecard"
	c.NetworkRoot = "/mnt/share/timecard"
	c.User.Username = "mihai"
	c.User.UserID = 7
	return c
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	require.Equal(t, "USER", c.User.Role)
	require.Equal(t, 8, c.User.ScheduleHours)
	require.Equal(t, time.Hour, c.Network.MonitorInterval)
	require.Equal(t, 3, c.Network.JitterThreshold)
	require.True(t, c.Sync.Enabled)
	require.Equal(t, 10*time.Minute, c.Sync.Interval)
	require.False(t, c.Tracing.Enabled)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing local root", func(c *Config) { c.LocalRoot = "" }, "local_root"},
		{"missing network root", func(c *Config) { c.NetworkRoot = "" }, "network_root"},
		{"missing username", func(c *Config) { c.User.Username = "" }, "username"},
		{"zero user id", func(c *Config) { c.User.UserID = 0 }, "user_id"},
		{"bad role", func(c *Config) { c.User.Role = "INTERN" }, "role"},
		{"zero schedule", func(c *Config) { c.User.ScheduleHours = 0 }, "schedule_hours"},
		{"absurd schedule", func(c *Config) { c.User.ScheduleHours = 25 }, "schedule_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEffectiveBackupDir(t *testing.T) {
	c := validConfig()
	require.Equal(t, filepath.Join(c.LocalRoot, "backups"), c.EffectiveBackupDir())
	c.BackupDir = "/var/backups/timecard"
	require.Equal(t, "/var/backups/timecard", c.EffectiveBackupDir())
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Contains(t, parsed, "user")
	require.Contains(t, parsed, "sync")
	require.Contains(t, parsed, "tracing")
}

func TestSaveUser_PreservesOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	seed := `# workstation config
local_root: /home/mihai/timecard

# share mount, do not change without IT
network_root: /mnt/share/timecard

user:
  username: old
  user_id: 1
  role: USER
  schedule_hours: 8
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	require.NoError(t, SaveUser(path, UserConfig{
		Username:      "mihai",
		UserID:        7,
		Name:          "Mihai Pop",
		Role:          "TEAM_LEADER",
		ScheduleHours: 8,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "do not change without IT", "comments outside the section survive")
	require.Contains(t, text, "username: mihai")
	require.Contains(t, text, "role: TEAM_LEADER")
	require.NotContains(t, text, "username: old")
}

func TestSaveUser_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveUser(path, UserConfig{Username: "mihai", UserID: 7, Role: "USER", ScheduleHours: 8}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "username: mihai"))
}

func TestSaveSync_AppendsSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("local_root: /tmp/x\n"), 0o644))

	require.NoError(t, SaveSync(path, SyncConfig{Enabled: false, Interval: 5 * time.Minute, DebounceInterval: time.Second}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "local_root: /tmp/x")
	require.Contains(t, text, "enabled: false")
}
