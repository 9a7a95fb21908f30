package paths

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a write lock cannot be acquired within the
// caller's budget. Disk state is untouched when this happens.
var ErrLockTimeout = fmt.Errorf("paths: timed out waiting for path lock")

// PathLock is the reader/writer lock guarding one path. Writers exclude
// writers and readers; readers may concur.
type PathLock struct {
	mu sync.RWMutex
}

// Lock acquires the write lock.
func (l *PathLock) Lock() { l.mu.Lock() }

// Unlock releases the write lock.
func (l *PathLock) Unlock() { l.mu.Unlock() }

// RLock acquires a read lock.
func (l *PathLock) RLock() { l.mu.RLock() }

// RUnlock releases a read lock.
func (l *PathLock) RUnlock() { l.mu.RUnlock() }

// TryLock attempts the write lock without blocking.
func (l *PathLock) TryLock() bool { return l.mu.TryLock() }

// lockPollInterval is how often a budgeted acquisition retries TryLock.
const lockPollInterval = 10 * time.Millisecond

// AcquireWrite takes the write lock within the budget, polling rather than
// blocking so the caller can also honor context cancellation.
func (l *PathLock) AcquireWrite(ctx context.Context, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for {
		if l.mu.TryLock() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// LockRegistry hands out one PathLock per path string, idempotently.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*PathLock
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*PathLock)}
}

// For returns the lock registered for path, creating it on first use.
func (r *LockRegistry) For(path string) *PathLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[path]
	if !ok {
		lock = &PathLock{}
		r.locks[path] = lock
	}
	return lock
}

// Len returns the number of registered locks.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Reset drops every registered lock. Test suites use this to start clean.
func (r *LockRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = make(map[string]*PathLock)
}
