// Package liveness maintains the single logical networkAvailable flag. Raw
// probe results never escape: observations pass a jitter filter and a
// debounce window before the flag flips, and accepted changes broadcast on
// a pub/sub broker.
package liveness

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chronotable/timecard/internal/log"
	"github.com/chronotable/timecard/internal/pubsub"
)

// Defaults for the probe cadence and the stability filters.
const (
	DefaultMonitorInterval  = time.Hour
	DefaultDebounceInterval = 10 * time.Second
	DefaultJitterThreshold  = 3
	DefaultRetries          = 3

	attemptBaseTimeout = 500 * time.Millisecond
	attemptMaxTimeout  = 10 * time.Second
)

// initialBackoff is the startup detection schedule. The first available
// probe during this phase flips the flag without debounce.
var initialBackoff = []time.Duration{
	5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 60 * time.Second,
}

// Config tunes the monitor. Zero values take the defaults above.
type Config struct {
	NetworkRoot      string
	MonitorInterval  time.Duration
	DebounceInterval time.Duration
	JitterThreshold  int
	Retries          int
}

func (c Config) withDefaults() Config {
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = DefaultMonitorInterval
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}
	if c.JitterThreshold <= 0 {
		c.JitterThreshold = DefaultJitterThreshold
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	return c
}

// ProbeFunc performs one bounded probe attempt against the network root.
// A nil error means the root is reachable.
type ProbeFunc func(ctx context.Context, root string) error

// Status is a diagnostic snapshot of the monitor.
type Status struct {
	Available           bool      `json:"available"`
	LastChangeAt        time.Time `json:"lastChangeAt"`
	StabilityCounter    int       `json:"stabilityCounter"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Monitor probes the network root and owns the availability flag.
type Monitor struct {
	cfg    Config
	clock  clockwork.Clock
	probe  ProbeFunc
	broker *pubsub.Broker[bool]

	available atomic.Bool

	mu                  sync.Mutex
	lastChangeAt        time.Time
	stability           int
	consecutiveFailures int
	initialPhase        bool
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = clock }
}

// WithProbe substitutes the probe implementation.
func WithProbe(probe ProbeFunc) Option {
	return func(m *Monitor) { m.probe = probe }
}

// NewMonitor creates a monitor in the unavailable state.
func NewMonitor(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:          cfg.withDefaults(),
		clock:        clockwork.NewRealClock(),
		probe:        filesystemProbe,
		broker:       pubsub.NewBroker[bool](),
		initialPhase: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsAvailable reports the debounced availability flag. O(1), an atomic read.
func (m *Monitor) IsAvailable() bool {
	return m.available.Load()
}

// Changes returns a channel of accepted availability transitions.
func (m *Monitor) Changes(ctx context.Context) <-chan pubsub.Event[bool] {
	return m.broker.Subscribe(ctx)
}

// CurrentStatus snapshots the monitor state for diagnostics.
func (m *Monitor) CurrentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Available:           m.available.Load(),
		LastChangeAt:        m.lastChangeAt,
		StabilityCounter:    m.stability,
		ConsecutiveFailures: m.consecutiveFailures,
	}
}

// Run drives the monitor until ctx is cancelled: the startup backoff
// schedule first, then the steady-state probe ticker.
func (m *Monitor) Run(ctx context.Context) {
	for _, delay := range initialBackoff {
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(delay):
		}
		if m.ProbeOnce(ctx) {
			break
		}
	}
	m.endInitialPhase()

	ticker := m.clock.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce runs one full probe cycle (all retry attempts) and feeds the
// observation through the stability filters. Returns the raw cycle result.
func (m *Monitor) ProbeOnce(ctx context.Context) bool {
	up := false
	for attempt := 0; attempt < m.cfg.Retries; attempt++ {
		timeout := attemptBaseTimeout << attempt
		if timeout > attemptMaxTimeout {
			timeout = attemptMaxTimeout
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := m.probe(attemptCtx, m.cfg.NetworkRoot)
		cancel()
		if err == nil {
			up = true
			break
		}
		log.Debug(log.CatNet, "probe attempt failed", "attempt", attempt+1, "error", err.Error())
	}
	m.observe(up)
	return up
}

func (m *Monitor) endInitialPhase() {
	m.mu.Lock()
	m.initialPhase = false
	m.mu.Unlock()
}

// observe feeds one probe-cycle result through the jitter and debounce
// filters. During the initial phase the first available observation flips
// the flag immediately.
func (m *Monitor) observe(up bool) {
	m.mu.Lock()

	if up {
		m.consecutiveFailures = 0
	} else {
		m.consecutiveFailures++
	}

	current := m.available.Load()

	if m.initialPhase && up && !current {
		m.acceptLocked(true)
		m.mu.Unlock()
		return
	}

	if up == current {
		m.stability = 0
		m.mu.Unlock()
		return
	}

	m.stability++
	if m.stability < m.cfg.JitterThreshold {
		m.mu.Unlock()
		return
	}
	if m.clock.Since(m.lastChangeAt) < m.cfg.DebounceInterval {
		// Jitter filter passed but the last flip is too fresh; discard.
		m.mu.Unlock()
		return
	}

	m.acceptLocked(up)
	m.mu.Unlock()
}

// acceptLocked commits a state change and broadcasts it. Caller holds mu.
func (m *Monitor) acceptLocked(up bool) {
	m.available.Store(up)
	m.lastChangeAt = m.clock.Now()
	m.stability = 0
	log.Info(log.CatNet, "network availability changed", "available", up)
	m.broker.Publish(pubsub.ChangedEvent, up)
}

// Close releases the broker.
func (m *Monitor) Close() {
	m.broker.Close()
}
