// Package health tracks the liveness of the background tasks: each task
// registers its expected cadence and reports executions and failures, and
// repeated failures trigger the task's recovery callback.
package health

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chronotable/timecard/internal/log"
)

const (
	// failureThreshold is how many consecutive failures flag a task unhealthy
	// and arm its recovery callback.
	failureThreshold = 3
	// staleFactor: a task is unhealthy when it has not run for this many
	// expected intervals.
	staleFactor = 3
	// recoveryCooldown limits recovery invocations per task.
	recoveryCooldown = 5 * time.Minute
)

// Recovery is invoked with the failing task's status snapshot.
type Recovery func(TaskStatus)

// TaskStatus is the externally visible state of one registered task.
type TaskStatus struct {
	ID                  string        `json:"id"`
	ExpectedInterval    time.Duration `json:"expectedInterval"`
	LastRun             time.Time     `json:"lastRun"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	LastError           string        `json:"lastError,omitempty"`
	Healthy             bool          `json:"healthy"`
}

type task struct {
	status       TaskStatus
	recovery     Recovery
	lastRecovery time.Time
}

// Monitor tracks registered tasks. Safe for concurrent use.
type Monitor struct {
	clock clockwork.Clock

	mu    sync.Mutex
	tasks map[string]*task
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = clock }
}

// NewMonitor creates an empty monitor.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{clock: clockwork.NewRealClock(), tasks: make(map[string]*task)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterTask registers a task with its expected cadence and an optional
// recovery callback. Registration counts as a first run so a task is not
// flagged stale before its first tick.
func (m *Monitor) RegisterTask(id string, expectedInterval time.Duration, recovery Recovery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = &task{
		status: TaskStatus{
			ID:               id,
			ExpectedInterval: expectedInterval,
			LastRun:          m.clock.Now(),
		},
		recovery: recovery,
	}
	log.Debug(log.CatHealth, "task registered", "id", id, "interval", expectedInterval.String())
}

// RecordTaskExecution marks a successful run, resetting the failure streak.
func (m *Monitor) RecordTaskExecution(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return
	}
	t.status.LastRun = m.clock.Now()
	t.status.ConsecutiveFailures = 0
	t.status.LastError = ""
}

// RecordTaskFailure marks a failed run. Once the streak reaches the
// threshold the recovery callback fires, at most once per cooldown window.
func (m *Monitor) RecordTaskFailure(id string, err error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	t.status.ConsecutiveFailures++
	if err != nil {
		t.status.LastError = err.Error()
	}
	streak := t.status.ConsecutiveFailures

	var fire Recovery
	var snapshot TaskStatus
	now := m.clock.Now()
	if t.status.ConsecutiveFailures >= failureThreshold &&
		t.recovery != nil &&
		now.Sub(t.lastRecovery) >= recoveryCooldown {
		t.lastRecovery = now
		fire = t.recovery
		snapshot = m.statusLocked(t)
	}
	m.mu.Unlock()

	log.Warn(log.CatHealth, "task failure recorded", "id", id, "streak", streak)
	if fire != nil {
		log.Info(log.CatHealth, "recovery invoked", "id", id)
		fire(snapshot)
	}
}

// statusLocked computes the exported snapshot, including the unhealthy
// predicate: stale or failing repeatedly.
func (m *Monitor) statusLocked(t *task) TaskStatus {
	out := t.status
	stale := m.clock.Now().Sub(out.LastRun) > time.Duration(staleFactor)*out.ExpectedInterval
	out.Healthy = !stale && out.ConsecutiveFailures < failureThreshold
	return out
}

// Report snapshots every registered task for the diagnostics surface.
func (m *Monitor) Report() []TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, m.statusLocked(t))
	}
	return out
}

// Healthy reports whether every registered task passes the health predicate.
func (m *Monitor) Healthy() bool {
	for _, status := range m.Report() {
		if !status.Healthy {
			return false
		}
	}
	return true
}
