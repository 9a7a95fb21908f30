// Package notify implements the priority notification queue and its
// cooperative worker. Items are ordered by priority descending, then
// creation time ascending; the worker drains a bounded batch per tick so a
// burst cannot monopolize the scheduler.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/chronotable/timecard/internal/health"
	"github.com/chronotable/timecard/internal/log"
)

const (
	// WorkerTaskID is the id under which the worker reports to the health monitor.
	WorkerTaskID = "notification-queue-processor"

	tickInterval = 5 * time.Second
	maxPerTick   = 3
	maxRetries   = 3
	minPriority  = 1
)

// ErrRateLimited is returned when an enqueue is suppressed by the
// per-(user, type) rate limit.
var ErrRateLimited = errors.New("notify: suppressed by rate limit")

// ErrNotPending is returned when cancelling an id that is not queued.
var ErrNotPending = errors.New("notify: notification is not pending")

// Type classifies a notification.
type Type string

const (
	TypeScheduleEnd Type = "SCHEDULE_END"
	TypeHourly      Type = "HOURLY"
	TypeTempStop    Type = "TEMP_STOP"
	TypeStartDay    Type = "START_DAY"
	TypeResolution  Type = "RESOLUTION"
	TypeTest        Type = "TEST"
)

// Notification is one queued item.
type Notification struct {
	ID       string `json:"id"`
	Type     Type   `json:"type"`
	Username string `json:"username"`
	UserID   int    `json:"userId"`

	Title         string        `json:"title,omitempty"`
	Message       string        `json:"message,omitempty"`
	TrayMessage   string        `json:"trayMessage,omitempty"`
	FinalMinutes  *int          `json:"finalMinutes,omitempty"`
	TempStopStart *time.Time    `json:"tempStopStart,omitempty"`
	TimeoutPeriod time.Duration `json:"timeoutPeriod,omitempty"`

	Priority   int       `json:"priority"`
	RetryCount int       `json:"retryCount"`
	LastError  string    `json:"lastError,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Handler displays one notification. A non-nil error marks the attempt
// failed and the item is retried.
type Handler func(ctx context.Context, n *Notification) error

// HealthReporter is the slice of the health monitor the worker needs.
type HealthReporter interface {
	RegisterTask(id string, expectedInterval time.Duration, recovery health.Recovery)
	RecordTaskExecution(id string)
	RecordTaskFailure(id string, err error)
}

// Queue is the priority notification queue plus its tick worker.
type Queue struct {
	handler Handler
	clock   clockwork.Clock
	health  HealthReporter

	// rateLimits maps a type to its minimum re-display interval; types
	// without an entry are never suppressed.
	rateLimits map[Type]time.Duration

	mu          sync.Mutex
	pending     []*Notification
	lastDisplay map[string]time.Time // "<userId>|<type>" -> last successful display
}

// Option customizes a Queue.
type Option func(*Queue)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(q *Queue) { q.clock = clock }
}

// WithRateLimit sets the minimum interval between displays of a type for the
// same user.
func WithRateLimit(t Type, interval time.Duration) Option {
	return func(q *Queue) { q.rateLimits[t] = interval }
}

// WithHealthReporter wires the worker's health reporting.
func WithHealthReporter(h HealthReporter) Option {
	return func(q *Queue) { q.health = h }
}

// NewQueue creates an empty queue whose items are displayed by handler.
func NewQueue(handler Handler, opts ...Option) *Queue {
	q := &Queue{
		handler:     handler,
		clock:       clockwork.NewRealClock(),
		rateLimits:  make(map[Type]time.Duration),
		lastDisplay: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func rateKey(userID int, t Type) string {
	return fmt.Sprintf("%d|%s", userID, t)
}

// Enqueue queues a notification, assigning its id and creation time. Items
// suppressed by the rate limit return ErrRateLimited and are not queued.
func (q *Queue) Enqueue(n Notification) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	if interval, limited := q.rateLimits[n.Type]; limited {
		if last, seen := q.lastDisplay[rateKey(n.UserID, n.Type)]; seen && now.Sub(last) < interval {
			log.Debug(log.CatNotify, "notification suppressed",
				"type", string(n.Type), "user", n.Username)
			return "", ErrRateLimited
		}
	}

	if n.Priority < minPriority {
		n.Priority = minPriority
	}
	n.ID = uuid.NewString()
	n.CreatedAt = now
	q.pending = append(q.pending, &n)
	return n.ID, nil
}

// Cancel removes a pending item. Items already processed are immutable and
// cannot be cancelled.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.pending {
		if n.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotPending, id)
}

// Clear resets the queue wholesale, used during system reset.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.lastDisplay = make(map[string]time.Time)
}

// Pending snapshots the queued items in processing order.
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sortLocked()
	out := make([]Notification, len(q.pending))
	for i, n := range q.pending {
		out[i] = *n
	}
	return out
}

func (q *Queue) sortLocked() {
	sort.SliceStable(q.pending, func(i, j int) bool {
		if q.pending[i].Priority != q.pending[j].Priority {
			return q.pending[i].Priority > q.pending[j].Priority
		}
		return q.pending[i].CreatedAt.Before(q.pending[j].CreatedAt)
	})
}

// Run drives the worker until ctx is cancelled. Each tick processes a
// bounded batch; when the queue is busy (its lock is held) the tick is
// skipped rather than blocked on.
func (q *Queue) Run(ctx context.Context) {
	if q.health != nil {
		q.health.RegisterTask(WorkerTaskID, tickInterval, nil)
	}

	ticker := q.clock.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			q.Tick(ctx)
		}
	}
}

// Tick processes up to maxPerTick items and reports the outcome to the
// health monitor. Exposed so tests and the worker share one code path.
func (q *Queue) Tick(ctx context.Context) {
	if !q.mu.TryLock() {
		// Busy queue: skip the cycle, the next tick will catch up.
		return
	}

	var batch []*Notification
	q.sortLocked()
	n := min(maxPerTick, len(q.pending))
	batch = append(batch, q.pending[:n]...)
	q.pending = q.pending[n:]
	q.mu.Unlock()

	var tickErr error
	for _, item := range batch {
		if err := q.process(ctx, item); err != nil {
			tickErr = err
		}
	}

	if q.health == nil {
		return
	}
	if tickErr != nil {
		q.health.RecordTaskFailure(WorkerTaskID, tickErr)
	} else {
		q.health.RecordTaskExecution(WorkerTaskID)
	}
}

// process displays one item, retrying failures with decayed priority until
// the retry budget runs out.
func (q *Queue) process(ctx context.Context, n *Notification) error {
	err := q.handler(ctx, n)
	if err == nil {
		q.mu.Lock()
		q.lastDisplay[rateKey(n.UserID, n.Type)] = q.clock.Now()
		q.mu.Unlock()
		return nil
	}

	n.RetryCount++
	n.LastError = err.Error()
	if n.RetryCount >= maxRetries {
		log.ErrorErr(log.CatNotify, err, "notification dropped after retries",
			"type", string(n.Type), "user", n.Username)
		return err
	}

	if n.Priority > minPriority {
		n.Priority--
	}
	q.mu.Lock()
	q.pending = append(q.pending, n)
	q.mu.Unlock()
	log.Warn(log.CatNotify, "notification re-queued",
		"type", string(n.Type), "retry", n.RetryCount)
	return err
}
