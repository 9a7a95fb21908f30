package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
	"github.com/chronotable/timecard/internal/paths"
)

// saveLockBudget bounds how long a session save waits for its path lock.
const saveLockBudget = 5 * time.Second

// FileStore persists the session as a local JSON file with a sidecar backup
// on every save, matching the medium criticality tier of session files.
type FileStore struct {
	resolver *paths.Resolver
	backups  *backup.Service
	user     domain.User
}

// NewFileStore creates a store for one user's session file.
func NewFileStore(resolver *paths.Resolver, backups *backup.Service, user domain.User) *FileStore {
	return &FileStore{resolver: resolver, backups: backups, user: user}
}

func (s *FileStore) path() (paths.FilePath, error) {
	return s.resolver.ResolveLocal(domain.FileSession, s.user, paths.Params{})
}

// Load reads the session file. Missing means no session yet, not an error; a
// corrupt file is surfaced so the caller can decide between reset and restore.
func (s *FileStore) Load(ctx context.Context) (*domain.Session, error) {
	fp, err := s.path()
	if err != nil {
		return nil, err
	}

	lock := s.resolver.LockFor(fp.Path)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(fp.Path) //nolint:gosec // G304: resolver-produced path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", fp.Path, err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", fp.Path, err)
	}
	return &session, nil
}

// Save writes the session file under its path lock, preserving the previous
// bytes in the sidecar first.
func (s *FileStore) Save(ctx context.Context, session *domain.Session) error {
	fp, err := s.path()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	lock := s.resolver.LockFor(fp.Path)
	if err := lock.AcquireWrite(ctx, saveLockBudget); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fp.Path), 0o755); err != nil {
		return fmt.Errorf("session: create parent dir: %w", err)
	}
	if err := backup.CreateSidecar(fp.Path); err != nil {
		return err
	}
	if err := os.WriteFile(fp.Path, data, 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", fp.Path, err)
	}
	if s.backups != nil {
		if err := s.backups.AfterWrite(fp.Path, s.user.Username, domain.FileSession); err != nil {
			log.ErrorErr(log.CatBackup, err, "post-save backup failed", "path", fp.Path)
		}
	}
	return nil
}

var _ Store = (*FileStore)(nil)
