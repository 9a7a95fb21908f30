package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chronotable/timecard/internal/log"
)

// Watcher monitors a user's local store and signals, debounced, when any
// artifact changes. Backups and non-JSON files are ignored.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	userDir   string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// NewWatcher creates a watcher over the user's local directory.
func NewWatcher(userDir string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("syncer: creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		userDir:   userDir,
		debounce:  debounce,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the user directory and its artifact subdirectories. Returns
// the change channel; signals are coalesced while edits keep arriving.
func (w *Watcher) Start() (<-chan struct{}, error) {
	dirs := []string{w.userDir}
	for _, sub := range []string{"worktime", "register", "check_register", "timeoff"} {
		dirs = append(dirs, filepath.Join(w.userDir, sub))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("syncer: create watch dir %s: %w", dir, err)
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("syncer: watching %s: %w", dir, err)
		}
	}

	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				pending = true
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
				pending = true
			}

		case <-timerChan(timer):
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatSync, "watcher error", "error", err.Error())

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}

// relevantEvent keeps writes and creates on data files; sidecar backups
// would otherwise re-trigger a sync for their own write.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasSuffix(name, ".json") && !strings.Contains(name, ".bak")
}

// Watch bridges the watcher into the worker: every debounced change runs a
// sync pass, until ctx is cancelled.
func (w *Worker) Watch(ctx context.Context) error {
	if !w.cfg.Enabled {
		return nil
	}
	watcher, err := NewWatcher(filepath.Join(w.resolver.LocalRoot(), w.user.Username), w.cfg.DebounceInterval)
	if err != nil {
		return err
	}
	changes, err := watcher.Start()
	if err != nil {
		watcher.Stop() //nolint:errcheck // already failing
		return err
	}
	defer watcher.Stop() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			log.Debug(log.CatSync, "local change detected", "user", w.user.Username)
			w.syncAndReport(ctx)
		}
	}
}
