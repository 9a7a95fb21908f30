package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/health"
	"github.com/chronotable/timecard/internal/liveness"
	"github.com/chronotable/timecard/internal/log"
	"github.com/chronotable/timecard/internal/notify"
	"github.com/chronotable/timecard/internal/session"
	"github.com/chronotable/timecard/internal/syncer"
	"github.com/chronotable/timecard/internal/tracing"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background agent",
	Long: `Run the background agent for this workstation. The agent watches the
network share, reconciles the local store with it, drives the notification
queue, and exposes a local diagnostics endpoint.

Example:
  timecard agent                       # Run with the configured settings
  timecard agent --addr 127.0.0.1:7466 # Override the diagnostics address`,
	RunE: runAgent,
}

var agentAddr string

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&agentAddr, "addr", "", "Diagnostics address to listen on (overrides config)")
}

func runAgent(_ *cobra.Command, _ []string) error {
	if debugFlag || os.Getenv("TIMECARD_DEBUG") != "" {
		logPath := cfg.LogPath
		if logPath == "" {
			logPath = filepath.Join(cfg.LocalRoot, "timecard.log")
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()

		log.Info(log.CatConfig, "timecard agent starting", "logPath", logPath)
	}

	svc, err := buildServices()
	if err != nil {
		return err
	}

	traces, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	network := liveness.NewMonitor(liveness.Config{
		NetworkRoot:      svc.resolver.NetworkRoot(),
		MonitorInterval:  cfg.Network.MonitorInterval,
		DebounceInterval: time.Duration(cfg.Network.DebounceIntervalMs) * time.Millisecond,
		JitterThreshold:  cfg.Network.JitterThreshold,
		Retries:          cfg.Network.CheckRetries,
	})
	defer network.Close()

	healthMon := health.NewMonitor()

	hourly := time.Duration(cfg.Notifications.HourlyIntervalMinutes) * time.Minute
	queue := notify.NewQueue(displayNotification,
		notify.WithHealthReporter(healthMon),
		notify.WithRateLimit(notify.TypeHourly, hourly),
		notify.WithRateLimit(notify.TypeScheduleEnd, hourly),
	)

	worker := syncer.NewWorker(syncer.Config{
		Enabled:          cfg.Sync.Enabled,
		Interval:         cfg.Sync.Interval,
		DebounceInterval: cfg.Sync.DebounceInterval,
	}, svc.user, svc.resolver, svc.txns, svc.backups, network, syncer.WithHealth(healthMon))

	sessions, err := svc.sessionManager()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go network.Run(ctx)
	go queue.Run(ctx)
	go worker.Run(ctx)
	go func() {
		if err := worker.Watch(ctx); err != nil {
			log.ErrorErr(log.CatSync, err, "local store watcher stopped")
		}
	}()
	go watchSession(ctx, sessions, queue, svc.user)

	// Diagnostics endpoint.
	addr := agentAddr
	if addr == "" {
		addr = cfg.Diagnostics.ListenAddr
	}
	var server *http.Server
	serverErr := make(chan error, 1)
	if addr != "" {
		server = &http.Server{
			Addr:              addr,
			Handler:           health.Routes(healthMon, network),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		fmt.Printf("Diagnostics listening on %s\n", addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Agent started. Press Ctrl+C to stop.")

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-serverErr:
		cancel()
		return fmt.Errorf("diagnostics server: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatHealth, err, "error stopping diagnostics server")
		}
	}
	if err := traces.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatConfig, err, "error flushing traces")
	}

	fmt.Println("Agent stopped")
	return nil
}

// displayNotification is the queue handler. Desktop delivery is handled by
// the tray companion reading the agent's log; the agent records the display.
func displayNotification(_ context.Context, n *notify.Notification) error {
	log.Info(log.CatNotify, "notification displayed",
		"type", string(n.Type), "title", n.Title, "message", n.Message, "priority", n.Priority)
	fmt.Printf("[%s] %s: %s\n", n.Type, n.Title, n.Message)
	return nil
}

// watchSession refreshes the active session once a minute and raises the
// hourly and schedule-end notifications while the user is online. The queue's
// rate limits keep repeats apart.
func watchSession(ctx context.Context, sessions *session.Manager, queue *notify.Queue, user domain.User) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, err := sessions.Refresh(ctx)
		if err != nil || cur == nil || cur.SessionStatus != domain.WorkOnline {
			continue
		}

		_, _ = queue.Enqueue(notify.Notification{
			Type:     notify.TypeHourly,
			Username: user.Username,
			UserID:   user.UserID,
			Title:    "Worktime check-in",
			Message:  fmt.Sprintf("Worked %d minutes so far today.", cur.TotalWorkedMinutes),
			Priority: 2,
		})

		if cur.DayStartTime != nil {
			due := cur.DayStartTime.Add(time.Duration(user.ScheduleHours)*time.Hour +
				time.Duration(cur.TotalTemporaryStopMinutes)*time.Minute)
			if !time.Now().Before(due) {
				_, _ = queue.Enqueue(notify.Notification{
					Type:     notify.TypeScheduleEnd,
					Username: user.Username,
					UserID:   user.UserID,
					Title:    "Schedule complete",
					Message:  "Your scheduled hours are done. End the day when ready.",
					Priority: 4,
				})
			}
		}
	}
}
