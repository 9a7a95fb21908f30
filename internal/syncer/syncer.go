// Package syncer reconciles the local store with the network store. Worktime
// lists merge through the universal merge engine; everything else copies
// local-to-network through the transaction manager. Sync runs when the
// network comes back, on a steady timer, and when the watcher sees local
// edits; an hourly pass garbage-collects orphaned backups on the share.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/health"
	"github.com/chronotable/timecard/internal/liveness"
	"github.com/chronotable/timecard/internal/log"
	"github.com/chronotable/timecard/internal/merge"
	"github.com/chronotable/timecard/internal/paths"
	"github.com/chronotable/timecard/internal/txn"
)

// Health-monitor task ids.
const (
	SyncTaskID     = "sync-worker"
	OrphanGCTaskID = "orphan-backup-gc"
)

// Config tunes the worker. Zero durations take the defaults.
type Config struct {
	Enabled          bool
	Interval         time.Duration
	OrphanGCInterval time.Duration
	DebounceInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.OrphanGCInterval <= 0 {
		c.OrphanGCInterval = time.Hour
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = 2 * time.Second
	}
	return c
}

// Worker drives one user's store reconciliation.
type Worker struct {
	cfg      Config
	user     domain.User
	resolver *paths.Resolver
	txns     *txn.Manager
	backups  *backup.Service
	network  *liveness.Monitor
	health   *health.Monitor
	clock    clockwork.Clock
}

// Option customizes a Worker.
type Option func(*Worker)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Worker) { w.clock = clock }
}

// WithHealth wires health reporting for the worker's tasks.
func WithHealth(monitor *health.Monitor) Option {
	return func(w *Worker) { w.health = monitor }
}

// NewWorker creates a sync worker for one user.
func NewWorker(cfg Config, user domain.User, resolver *paths.Resolver, txns *txn.Manager,
	backups *backup.Service, network *liveness.Monitor, opts ...Option) *Worker {
	w := &Worker{
		cfg:      cfg.withDefaults(),
		user:     user,
		resolver: resolver,
		txns:     txns,
		backups:  backups,
		network:  network,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drives the worker until ctx is cancelled. A disabled worker returns
// immediately.
func (w *Worker) Run(ctx context.Context) {
	if !w.cfg.Enabled {
		log.Info(log.CatSync, "sync disabled by configuration")
		return
	}
	if w.health != nil {
		w.health.RegisterTask(SyncTaskID, w.cfg.Interval, nil)
		w.health.RegisterTask(OrphanGCTaskID, w.cfg.OrphanGCInterval, nil)
	}

	changes := w.network.Changes(ctx)
	syncTicker := w.clock.NewTicker(w.cfg.Interval)
	defer syncTicker.Stop()
	gcTicker := w.clock.NewTicker(w.cfg.OrphanGCInterval)
	defer gcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-changes:
			if !ok {
				return
			}
			if event.Payload {
				// The share just came back: reconcile what piled up offline.
				w.syncAndReport(ctx)
			}
		case <-syncTicker.Chan():
			w.syncAndReport(ctx)
		case <-gcTicker.Chan():
			w.gcAndReport()
		}
	}
}

func (w *Worker) syncAndReport(ctx context.Context) {
	err := w.SyncNow(ctx)
	if w.health == nil {
		return
	}
	if err != nil {
		w.health.RecordTaskFailure(SyncTaskID, err)
	} else {
		w.health.RecordTaskExecution(SyncTaskID)
	}
}

func (w *Worker) gcAndReport() {
	sessionDir := filepath.Join(w.resolver.NetworkRoot(), w.user.Username)
	_, err := w.backups.CleanOrphans(sessionDir)
	if w.health == nil {
		return
	}
	if err != nil {
		w.health.RecordTaskFailure(OrphanGCTaskID, err)
	} else {
		w.health.RecordTaskExecution(OrphanGCTaskID)
	}
}

// SyncNow performs one full reconciliation pass for the current period. The
// pass is a no-op while the network is unavailable.
func (w *Worker) SyncNow(ctx context.Context) error {
	if !w.network.IsAvailable() {
		log.Debug(log.CatSync, "sync skipped, network unavailable")
		return nil
	}

	ctx, span := otel.Tracer("timecard/syncer").Start(ctx, "syncer.pass",
		trace.WithAttributes(attribute.String("sync.user", w.user.Username)))
	defer span.End()

	now := w.clock.Now()
	params := paths.Params{Year: now.Year(), Month: now.Month()}

	tx := w.txns.Begin()
	if err := w.queueWorktimeMerge(tx, params); err != nil {
		return err
	}
	for _, kind := range []domain.FileKind{
		domain.FileSession, domain.FileStatus, domain.FileTimeOff,
		domain.FileRegister, domain.FileCheckRegister,
	} {
		if err := w.queueCopy(tx, kind, params); err != nil {
			return err
		}
	}

	result := tx.Commit(ctx)
	if result.Success {
		log.Info(log.CatSync, "sync completed", "user", w.user.Username, "ops", len(result.Ops))
	}
	return result.Err()
}

// queueWorktimeMerge merges the two monthly worktime lists and queues the
// merged list for both stores, so a failed commit leaves neither half-updated.
func (w *Worker) queueWorktimeMerge(tx *txn.Transaction, params paths.Params) error {
	local, err := w.resolver.ResolveLocal(domain.FileWorktime, w.user, params)
	if err != nil {
		return err
	}
	network, err := w.resolver.ResolveNetwork(domain.FileWorktime, w.user, params)
	if err != nil {
		return err
	}

	localEntries, err := readWorktime(local.Path)
	if err != nil {
		return err
	}
	networkEntries, err := readWorktime(network.Path)
	if err != nil {
		return err
	}
	if len(localEntries) == 0 && len(networkEntries) == 0 {
		return nil
	}

	merged := merge.Lists(localEntries, networkEntries, merge.KindWorktime,
		func(e *domain.WorktimeEntry) string { return e.MergeKey() }, merge.UserToAdmin)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("syncer: encode merged worktime: %w", err)
	}
	if err := tx.AddWrite(local.Path, data, domain.FileWorktime); err != nil {
		return err
	}
	return tx.AddWrite(network.Path, data, domain.FileWorktime)
}

// queueCopy queues a local-to-network copy for one artifact, skipping kinds
// with nothing local yet.
func (w *Worker) queueCopy(tx *txn.Transaction, kind domain.FileKind, params paths.Params) error {
	local, err := w.resolver.ResolveLocal(kind, w.user, params)
	if err != nil {
		return err
	}
	if _, err := os.Stat(local.Path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("syncer: stat %s: %w", local.Path, err)
	}
	network, err := w.resolver.ResolveNetwork(kind, w.user, params)
	if err != nil {
		return err
	}
	return tx.AddSync(local.Path, network.Path, kind)
}

func readWorktime(path string) ([]*domain.WorktimeEntry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: resolver-produced path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("syncer: read %s: %w", path, err)
	}
	var entries []*domain.WorktimeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("syncer: decode %s: %w", path, err)
	}
	for _, e := range entries {
		e.AdminSync = domain.Normalize(e.AdminSync)
	}
	return entries, nil
}
