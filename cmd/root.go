package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chronotable/timecard/internal/config"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "timecard",
	Short:   "Work-time tracking for the workstation",
	Long:    `Tracks work sessions, temporary stops and monthly worktime, keeps the local store reconciled with the network share, and reports on both.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/timecard/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging")
	rootCmd.PersistentFlags().String("local-root", "", "local store root directory")
	rootCmd.PersistentFlags().String("network-root", "", "network share root directory")

	_ = viper.BindPFlag("local_root", rootCmd.PersistentFlags().Lookup("local-root"))
	_ = viper.BindPFlag("network_root", rootCmd.PersistentFlags().Lookup("network-root"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("user.role", defaults.User.Role)
	viper.SetDefault("user.schedule_hours", defaults.User.ScheduleHours)
	viper.SetDefault("network.monitor_interval", defaults.Network.MonitorInterval)
	viper.SetDefault("network.debounce_interval_ms", defaults.Network.DebounceIntervalMs)
	viper.SetDefault("network.jitter_threshold", defaults.Network.JitterThreshold)
	viper.SetDefault("network.check_retries", defaults.Network.CheckRetries)
	viper.SetDefault("sync.enabled", defaults.Sync.Enabled)
	viper.SetDefault("sync.interval", defaults.Sync.Interval)
	viper.SetDefault("sync.debounce_interval", defaults.Sync.DebounceInterval)
	viper.SetDefault("notifications.hourly_interval_minutes", defaults.Notifications.HourlyIntervalMinutes)
	viper.SetDefault("diagnostics.listen_addr", defaults.Diagnostics.ListenAddr)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .timecard/config.yaml (current directory)
		// 2. ~/.config/timecard/config.yaml (user config)
		if _, err := os.Stat(".timecard/config.yaml"); err == nil {
			viper.SetConfigFile(".timecard/config.yaml")
		} else if dir := config.DefaultConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run: seed a starter config and continue on defaults.
			if dir := config.DefaultConfigDir(); dir != "" {
				defaultPath := filepath.Join(dir, "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
