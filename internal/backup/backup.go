// Package backup creates, lists, restores, and garbage-collects file
// backups by criticality tier. Sidecar backups (<primary>.bak) live next to
// their primary; high-tier artifacts additionally get timestamped copies in
// a tiered directory that survive until garbage collection.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
)

const (
	// SidecarSuffix is appended to a primary to name its sidecar backup.
	SidecarSuffix = ".bak"
	// restoreSuffix names the safety copy taken before an admin restore.
	restoreSuffix = ".admin_restore_backup"
	// stampLayout is the timestamp embedded in high-tier backup names.
	stampLayout = "20060102_150405"
	// minValidSize is the integrity floor: primaries below it are corrupt.
	minValidSize = 3
)

// Entry describes one stored timestamped backup, newest first in listings.
type Entry struct {
	Path      string          `json:"path"`
	Kind      domain.FileKind `json:"kind"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Service manages the tiered backup directory.
type Service struct {
	backupDir string
	clock     clockwork.Clock
}

// Option customizes a Service.
type Option func(*Service)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates a backup service rooted at backupDir.
func NewService(backupDir string, opts ...Option) *Service {
	s := &Service{backupDir: backupDir, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SidecarPath names the sidecar backup of a primary.
func SidecarPath(primary string) string {
	return primary + SidecarSuffix
}

// CreateSidecar copies the primary to its sidecar backup. Missing primaries
// are not an error; there is simply nothing to preserve yet.
func CreateSidecar(primary string) error {
	data, err := os.ReadFile(primary) //nolint:gosec // G304: resolver-produced path
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("backup: read primary %s: %w", primary, err)
	}
	if err := os.WriteFile(SidecarPath(primary), data, 0o644); err != nil {
		return fmt.Errorf("backup: write sidecar for %s: %w", primary, err)
	}
	return nil
}

// AfterWrite runs the tier policy following a successful overwrite of path:
// low tiers drop the sidecar, medium keeps it until the next write, and high
// additionally records a timestamped copy.
func (s *Service) AfterWrite(path, username string, kind domain.FileKind) error {
	switch kind.Criticality() {
	case domain.CriticalityLow:
		if err := os.Remove(SidecarPath(path)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("backup: drop low-tier sidecar: %w", err)
		}
		return nil
	case domain.CriticalityMedium:
		return nil
	default:
		_, err := s.Timestamped(path, username, kind)
		return err
	}
}

// Timestamped writes <name>.<yyyyMMdd_HHmmss>.bak into the user's tier
// directory and returns its path.
func (s *Service) Timestamped(path, username string, kind domain.FileKind) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: resolver-produced path
	if err != nil {
		return "", fmt.Errorf("backup: read %s: %w", path, err)
	}

	dir := s.tierDir(username, kind.Criticality())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: create tier dir: %w", err)
	}

	stamp := s.clock.Now().Format(stampLayout)
	dest := filepath.Join(dir, fmt.Sprintf("%s.%s%s", filepath.Base(path), stamp, SidecarSuffix))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("backup: write timestamped backup: %w", err)
	}
	log.Debug(log.CatBackup, "timestamped backup written", "dest", dest)
	return dest, nil
}

func (s *Service) tierDir(username string, tier domain.Criticality) string {
	return filepath.Join(s.backupDir, username, tier.String())
}

// ListAvailable returns the user's timestamped backups for a kind, newest
// first. A missing tier directory yields an empty list.
func (s *Service) ListAvailable(username string, kind domain.FileKind) ([]Entry, error) {
	dir := s.tierDir(username, kind.Criticality())
	names, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", dir, err)
	}

	prefix := string(kind) + "_"
	entries := make([]Entry, 0, len(names))
	for _, de := range names {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, SidecarSuffix) {
			continue
		}
		createdAt, ok := parseStamp(name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Path:      filepath.Join(dir, name),
			Kind:      kind,
			CreatedAt: createdAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// parseStamp extracts the timestamp from <name>.<stamp>.bak.
func parseStamp(name string) (time.Time, bool) {
	trimmed := strings.TrimSuffix(name, SidecarSuffix)
	dot := strings.LastIndexByte(trimmed, '.')
	if dot < 0 {
		return time.Time{}, false
	}
	stamp, err := time.ParseInLocation(stampLayout, trimmed[dot+1:], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return stamp, true
}

// Restore overwrites target with the backup's bytes, preserving the current
// target under an admin-restore safety copy first.
func (s *Service) Restore(backupPath, targetPath string) error {
	data, err := os.ReadFile(backupPath) //nolint:gosec // G304: selected from ListAvailable
	if err != nil {
		return fmt.Errorf("backup: read backup %s: %w", backupPath, err)
	}

	if current, err := os.ReadFile(targetPath); err == nil { //nolint:gosec // G304: resolver-produced path
		if err := os.WriteFile(targetPath+restoreSuffix, current, 0o644); err != nil {
			return fmt.Errorf("backup: write admin restore backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("backup: read restore target: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("backup: create target dir: %w", err)
	}
	if err := os.WriteFile(targetPath, data, 0o644); err != nil {
		return fmt.Errorf("backup: restore %s: %w", targetPath, err)
	}
	log.Info(log.CatBackup, "backup restored", "from", backupPath, "to", targetPath)
	return nil
}

// CleanOrphans garbage-collects sidecar backups in a session directory.
// A backup is deleted only when its primary exists, passes the integrity
// floor, and is newer than the backup; anything else stays, preferring data
// presence over tidiness. Returns the number of backups removed.
func (s *Service) CleanOrphans(sessionDir string) (int, error) {
	names, err := os.ReadDir(sessionDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("backup: scan %s: %w", sessionDir, err)
	}

	removed := 0
	for _, de := range names {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, SidecarSuffix) {
			continue
		}

		backupPath := filepath.Join(sessionDir, name)
		primaryPath := strings.TrimSuffix(backupPath, SidecarSuffix)

		primary, err := os.Stat(primaryPath)
		if err != nil {
			continue // primary gone: the backup is the only copy left
		}
		bak, err := os.Stat(backupPath)
		if err != nil {
			continue
		}
		if primary.Size() < minValidSize || !primary.ModTime().After(bak.ModTime()) {
			continue
		}

		if err := os.Remove(backupPath); err != nil {
			log.Warn(log.CatBackup, "orphan removal failed", "path", backupPath, "error", err.Error())
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info(log.CatBackup, "orphaned backups removed", "dir", sessionDir, "count", removed)
	}
	return removed, nil
}
