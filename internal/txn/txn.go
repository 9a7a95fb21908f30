// Package txn groups file writes and file-to-file syncs into a transaction
// that either commits fully or restores every previously-existing touched
// file from its in-memory snapshot.
package txn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
	"github.com/chronotable/timecard/internal/paths"
)

// ErrNotActive is returned when operations are queued on, or committed from,
// a transaction that has already finished.
var ErrNotActive = errors.New("txn: transaction is not active")

// DefaultLockBudget bounds how long commit waits for each path lock.
const DefaultLockBudget = 5 * time.Second

// OpKind discriminates the two supported operations.
type OpKind string

const (
	OpWrite OpKind = "write"
	OpSync  OpKind = "sync"
)

// Operation is one queued mutation. Write carries the bytes; Sync carries
// the source path to copy from.
type Operation struct {
	Kind     OpKind
	Path     string
	Data     []byte
	Source   string
	FileKind domain.FileKind
}

// OpResult pairs an executed operation with its outcome.
type OpResult struct {
	Op  Operation
	Err error
}

// Result aggregates a finished commit: per-op outcomes plus any rollback
// failures. Rollback is best-effort; its errors are reported, not retried.
type Result struct {
	TxnID        string
	Success      bool
	Ops          []OpResult
	RollbackErrs []error
}

// Err folds the result into a single error, nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	for _, op := range r.Ops {
		if op.Err != nil {
			return fmt.Errorf("txn %s: %s %s: %w", r.TxnID, op.Op.Kind, op.Op.Path, op.Err)
		}
	}
	return fmt.Errorf("txn %s: commit failed", r.TxnID)
}

// State is the transaction lifecycle. Finished transactions reject re-use.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	default:
		return "rolled_back"
	}
}

// Manager begins transactions that share one path-lock registry, so two
// concurrent transactions cannot write the same file at once.
type Manager struct {
	locks      *paths.LockRegistry
	lockBudget time.Duration
}

// NewManager creates a manager over the given lock registry.
func NewManager(locks *paths.LockRegistry) *Manager {
	return &Manager{locks: locks, lockBudget: DefaultLockBudget}
}

// Begin opens a new active transaction.
func (m *Manager) Begin() *Transaction {
	return &Transaction{
		id:        uuid.NewString(),
		state:     StateActive,
		snapshots: make(map[string][]byte),
		manager:   m,
	}
}

// Transaction accumulates operations and their pre-images. Not safe for
// concurrent use; a transaction belongs to one goroutine.
type Transaction struct {
	id      string
	manager *Manager

	mu        sync.Mutex
	state     State
	ops       []Operation
	snapshots map[string][]byte // path -> original bytes, pre-existing files only
	snapOrder []string
}

// ID returns the transaction's identifier.
func (t *Transaction) ID() string { return t.id }

// State returns the current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AddWrite queues an overwrite of path with data, snapshotting the current
// bytes the first time the path is touched.
func (t *Transaction) AddWrite(path string, data []byte, kind domain.FileKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrNotActive
	}
	if err := t.snapshotLocked(path); err != nil {
		return err
	}
	t.ops = append(t.ops, Operation{Kind: OpWrite, Path: path, Data: data, FileKind: kind})
	return nil
}

// AddSync queues a copy of source onto target. The source may be large, so
// nothing is read here; the target snapshot is captured at commit time.
func (t *Transaction) AddSync(source, target string, kind domain.FileKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrNotActive
	}
	t.ops = append(t.ops, Operation{Kind: OpSync, Path: target, Source: source, FileKind: kind})
	return nil
}

// snapshotLocked records path's current bytes once. Absent files are not
// snapshotted: a failed commit leaves newly-created files in place rather
// than deleting data.
func (t *Transaction) snapshotLocked(path string) error {
	if _, done := t.snapshots[path]; done {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: resolver-produced path
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("txn: snapshot %s: %w", path, err)
	}
	t.snapshots[path] = data
	t.snapOrder = append(t.snapOrder, path)
	return nil
}

// Commit executes the queued operations in insertion order. On any failure
// every snapshotted file is restored and the transaction is rolled back;
// otherwise snapshots are dropped and the transaction is committed. Either
// way the transaction is terminal afterwards.
func (t *Transaction) Commit(ctx context.Context) Result {
	ctx, span := otel.Tracer("timecard/txn").Start(ctx, "txn.commit")
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	result := Result{TxnID: t.id}
	span.SetAttributes(
		attribute.String("txn.id", t.id),
		attribute.Int("txn.ops", len(t.ops)),
	)

	if t.state != StateActive {
		result.Ops = []OpResult{{Err: ErrNotActive}}
		return result
	}

	unlock, err := t.lockPaths(ctx)
	if err != nil {
		result.Ops = []OpResult{{Err: err}}
		t.state = StateRolledBack
		return result
	}
	defer unlock()

	success := true
	for _, op := range t.ops {
		opErr := t.executeLocked(op)
		result.Ops = append(result.Ops, OpResult{Op: op, Err: opErr})
		if opErr != nil {
			log.ErrorErr(log.CatTxn, opErr, "operation failed", "txn", t.id, "path", op.Path)
			success = false
			break
		}
	}

	if success {
		t.snapshots = nil
		t.snapOrder = nil
		t.state = StateCommitted
		result.Success = true
		log.Debug(log.CatTxn, "transaction committed", "txn", t.id, "ops", len(result.Ops))
		return result
	}

	result.RollbackErrs = t.rollbackLocked()
	t.state = StateRolledBack
	log.Warn(log.CatTxn, "transaction rolled back",
		"txn", t.id, "rollbackErrors", len(result.RollbackErrs))
	return result
}

// lockPaths takes the write lock for every distinct target path, in sorted
// order so concurrent transactions cannot deadlock.
func (t *Transaction) lockPaths(ctx context.Context) (func(), error) {
	distinct := make(map[string]struct{}, len(t.ops))
	for _, op := range t.ops {
		distinct[op.Path] = struct{}{}
	}
	targets := make([]string, 0, len(distinct))
	for path := range distinct {
		targets = append(targets, path)
	}
	sort.Strings(targets)

	held := make([]*paths.PathLock, 0, len(targets))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
	for _, path := range targets {
		lock := t.manager.locks.For(path)
		if err := lock.AcquireWrite(ctx, t.manager.lockBudget); err != nil {
			release()
			return nil, fmt.Errorf("txn: lock %s: %w", path, err)
		}
		held = append(held, lock)
	}
	return release, nil
}

func (t *Transaction) executeLocked(op Operation) error {
	switch op.Kind {
	case OpWrite:
		if err := os.MkdirAll(filepath.Dir(op.Path), 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
		if err := os.WriteFile(op.Path, op.Data, 0o644); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil
	case OpSync:
		return t.executeSyncLocked(op)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (t *Transaction) executeSyncLocked(op Operation) error {
	data, err := os.ReadFile(op.Source) //nolint:gosec // G304: resolver-produced path
	if err != nil {
		return fmt.Errorf("read sync source: %w", err)
	}
	if err := t.snapshotLocked(op.Path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(op.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := backup.CreateSidecar(op.Path); err != nil {
		return err
	}
	if err := os.WriteFile(op.Path, data, 0o644); err != nil {
		return fmt.Errorf("copy to target: %w", err)
	}
	if op.FileKind.Criticality() == domain.CriticalityLow {
		if err := os.Remove(backup.SidecarPath(op.Path)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("drop low-tier sidecar: %w", err)
		}
	}
	return nil
}

// rollbackLocked restores every snapshot, best-effort, in capture order.
func (t *Transaction) rollbackLocked() []error {
	var errs []error
	for _, path := range t.snapOrder {
		if err := os.WriteFile(path, t.snapshots[path], 0o644); err != nil {
			errs = append(errs, fmt.Errorf("txn: restore %s: %w", path, err))
		}
	}
	return errs
}
