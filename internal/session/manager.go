// Package session drives the per-user work session through its three states:
// WORK_ONLINE, WORK_TEMPORARY_STOP, and WORK_OFFLINE. All time math is
// delegated to the calc package; this package owns the transitions and the
// persisted session file.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chronotable/timecard/internal/calc"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
)

var (
	// ErrAlreadyCompleted rejects starting a day that has already been closed.
	ErrAlreadyCompleted = errors.New("session: workday already completed")
	// ErrNotOnline rejects a transition that needs a running session.
	ErrNotOnline = errors.New("session: session is not online")
	// ErrNotStopped rejects a resume without a temporary stop in progress.
	ErrNotStopped = errors.New("session: session is not in a temporary stop")
)

// Store persists the session file.
type Store interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
}

// Archiver receives a stale session (a previous day's leftovers) so its
// totals can be written into that day's worktime row before the reset.
type Archiver func(ctx context.Context, stale *domain.Session) error

// Manager serializes state transitions for one user's session.
type Manager struct {
	user    domain.User
	store   Store
	clock   clockwork.Clock
	archive Archiver

	mu      sync.Mutex
	current *domain.Session
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithArchiver installs the stale-session archive hook.
func WithArchiver(archive Archiver) Option {
	return func(m *Manager) { m.archive = archive }
}

// NewManager creates a manager for one user over the given store.
func NewManager(user domain.User, store Store, opts ...Option) *Manager {
	m := &Manager{user: user, store: store, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the tracked session, loading it from the store on first
// use. A missing file yields a fresh offline session for today.
func (m *Manager) Current(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(ctx)
}

func (m *Manager) currentLocked(ctx context.Context) (*domain.Session, error) {
	if m.current != nil {
		return m.current, nil
	}
	loaded, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = domain.NewSession(m.user.Username, m.user.UserID, m.clock.Now())
	}
	m.current = loaded
	return m.current, nil
}

// StartDay opens today's session. A session already completed today is
// rejected; a stale session from a previous day is archived first, then
// replaced by a fresh one.
func (m *Manager) StartDay(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	existing, err := m.currentLocked(ctx)
	if err != nil {
		return nil, err
	}

	if existing.DayStartTime != nil {
		if sameDay(*existing.DayStartTime, now) {
			if existing.WorkdayCompleted {
				return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, now.Format("2006-01-02"))
			}
		} else {
			if m.archive != nil {
				if err := m.archive(ctx, existing); err != nil {
					return nil, fmt.Errorf("session: archive stale session: %w", err)
				}
			}
			log.Info(log.CatSession, "stale session archived",
				"user", m.user.Username, "staleDay", existing.DayStartTime.Format("2006-01-02"))
		}
	}

	fresh := domain.NewSession(m.user.Username, m.user.UserID, now)
	start := now
	fresh.SessionStatus = domain.WorkOnline
	fresh.DayStartTime = &start
	fresh.CurrentStartTime = &start

	if err := m.store.Save(ctx, fresh); err != nil {
		return nil, err
	}
	m.current = fresh
	log.Info(log.CatSession, "day started", "user", m.user.Username)
	return fresh, nil
}

// TemporaryStop pauses an online session at the current instant.
func (m *Manager) TemporaryStop(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	if current.SessionStatus != domain.WorkOnline {
		return nil, fmt.Errorf("%w: status %s", ErrNotOnline, current.SessionStatus)
	}

	next, err := calc.ProcessTemporaryStop(current, m.clock.Now())
	if err != nil {
		return nil, err
	}
	return m.commitLocked(ctx, next)
}

// Resume closes the open temporary stop and puts the session back online.
func (m *Manager) Resume(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	if current.SessionStatus != domain.WorkTemporaryStop {
		return nil, fmt.Errorf("%w: status %s", ErrNotStopped, current.SessionStatus)
	}

	next, err := calc.ProcessResumeFromTempStop(current, m.clock.Now())
	if err != nil {
		return nil, err
	}
	return m.commitLocked(ctx, next)
}

// AddBreak records an already-completed break interval on the session.
func (m *Manager) AddBreak(ctx context.Context, start, end time.Time) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	next, err := calc.AddBreakAsTempStop(current, start, end)
	if err != nil {
		return nil, err
	}
	return m.commitLocked(ctx, next)
}

// Refresh recomputes the session's derived fields from the current clock,
// according to its state. Offline sessions are returned untouched.
func (m *Manager) Refresh(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.currentLocked(ctx)
	if err != nil {
		return nil, err
	}

	switch current.SessionStatus {
	case domain.WorkOnline:
		next, err := calc.UpdateOnlineSessionCalculations(current, calc.Context{
			Now:           m.clock.Now(),
			ScheduleHours: m.user.ScheduleHours,
		})
		if err != nil {
			return nil, err
		}
		return m.commitLocked(ctx, next)
	case domain.WorkTemporaryStop:
		next, err := calc.UpdateTempStopCalculations(current, m.clock.Now())
		if err != nil {
			return nil, err
		}
		return m.commitLocked(ctx, next)
	default:
		return current, nil
	}
}

// EndDay closes the session at the current instant. A session still inside a
// temporary stop is resumed first, so the open stop gets its end time before
// the day's totals freeze.
func (m *Manager) EndDay(ctx context.Context, finalMinutes *int) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	if current.SessionStatus == domain.WorkOffline {
		return nil, fmt.Errorf("%w: status %s", ErrNotOnline, current.SessionStatus)
	}

	now := m.clock.Now()
	if current.SessionStatus == domain.WorkTemporaryStop {
		current, err = calc.ProcessResumeFromTempStop(current, now)
		if err != nil {
			return nil, err
		}
	}

	next, err := calc.CalculateEndDayValues(current, now, finalMinutes)
	if err != nil {
		return nil, err
	}
	session, err := m.commitLocked(ctx, next)
	if err != nil {
		return nil, err
	}
	log.Info(log.CatSession, "day ended",
		"user", m.user.Username, "finalMinutes", session.FinalWorkedMinutes)
	return session, nil
}

func (m *Manager) commitLocked(ctx context.Context, next *domain.Session) (*domain.Session, error) {
	if err := m.store.Save(ctx, next); err != nil {
		return nil, err
	}
	m.current = next
	return next, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
