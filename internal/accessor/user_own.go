package accessor

import (
	"context"
	"fmt"
	"time"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/cachemanager"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
	"github.com/chronotable/timecard/internal/paths"
)

// writeLockBudget bounds how long a direct local write waits for its path lock.
const writeLockBudget = 5 * time.Second

// userOwn serves a user reading and writing their own local artifacts. Reads
// go cache -> local file -> emergency empty; writes go through the path lock
// and write back to the cache.
type userOwn struct {
	user domain.User
	deps Deps

	worktime      cachemanager.CacheManager[string, []*domain.WorktimeEntry]
	registers     cachemanager.CacheManager[string, []*domain.RegisterEntry]
	checkRegs     cachemanager.CacheManager[string, []*domain.CheckRegisterEntry]
	timeOff       cachemanager.CacheManager[string, *domain.TimeOffTracker]
	skipCache     bool
	cacheLifetime time.Duration
}

func newUserOwn(user domain.User, deps Deps) *userOwn {
	return &userOwn{
		user: user,
		deps: deps,
		worktime: cachemanager.NewInMemoryCacheManager[string, []*domain.WorktimeEntry](
			"worktime", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		registers: cachemanager.NewInMemoryCacheManager[string, []*domain.RegisterEntry](
			"register", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		checkRegs: cachemanager.NewInMemoryCacheManager[string, []*domain.CheckRegisterEntry](
			"check_register", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		timeOff: cachemanager.NewInMemoryCacheManager[string, *domain.TimeOffTracker](
			"timeoff", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		skipCache:     deps.SkipCache,
		cacheLifetime: cachemanager.DefaultExpiration,
	}
}

func (a *userOwn) SupportsWrite() bool { return true }

func cacheKey(kind domain.FileKind, userID, year int, month time.Month) string {
	return fmt.Sprintf("%s_%d_%d_%02d", kind, userID, year, month)
}

func (a *userOwn) worktimePath(year int, month time.Month) (paths.FilePath, error) {
	return a.deps.Resolver.ResolveLocal(domain.FileWorktime, a.user, paths.Params{Year: year, Month: month})
}

func (a *userOwn) ReadWorktime(ctx context.Context, year int, month time.Month) ([]*domain.WorktimeEntry, error) {
	key := cacheKey(domain.FileWorktime, a.user.UserID, year, month)
	if !a.skipCache {
		if cached, ok := a.worktime.Get(ctx, key); ok {
			return cached, nil
		}
	}

	fp, err := a.worktimePath(year, month)
	if err != nil {
		return nil, err
	}
	entries, err := readList[domain.WorktimeEntry](fp.Path)
	if err != nil {
		// Emergency fallback: a corrupt local file must not take the UI down.
		log.ErrorErr(log.CatStore, err, "worktime read failed, serving empty", "path", fp.Path)
		return []*domain.WorktimeEntry{}, nil
	}
	entries = normalizeWorktime(entries)
	a.worktime.Set(ctx, key, entries, a.cacheLifetime)
	return entries, nil
}

func (a *userOwn) ReadRegister(ctx context.Context, year int, month time.Month) ([]*domain.RegisterEntry, error) {
	key := cacheKey(domain.FileRegister, a.user.UserID, year, month)
	if !a.skipCache {
		if cached, ok := a.registers.Get(ctx, key); ok {
			return cached, nil
		}
	}
	fp, err := a.deps.Resolver.ResolveLocal(domain.FileRegister, a.user, paths.Params{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	entries, err := readList[domain.RegisterEntry](fp.Path)
	if err != nil {
		log.ErrorErr(log.CatStore, err, "register read failed, serving empty", "path", fp.Path)
		return []*domain.RegisterEntry{}, nil
	}
	for _, e := range entries {
		e.AdminSync = domain.Normalize(e.AdminSync)
	}
	a.registers.Set(ctx, key, entries, a.cacheLifetime)
	return entries, nil
}

func (a *userOwn) ReadCheckRegister(ctx context.Context, year int, month time.Month) ([]*domain.CheckRegisterEntry, error) {
	key := cacheKey(domain.FileCheckRegister, a.user.UserID, year, month)
	if !a.skipCache {
		if cached, ok := a.checkRegs.Get(ctx, key); ok {
			return cached, nil
		}
	}
	fp, err := a.deps.Resolver.ResolveLocal(domain.FileCheckRegister, a.user, paths.Params{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	entries, err := readList[domain.CheckRegisterEntry](fp.Path)
	if err != nil {
		log.ErrorErr(log.CatStore, err, "check register read failed, serving empty", "path", fp.Path)
		return []*domain.CheckRegisterEntry{}, nil
	}
	for _, e := range entries {
		e.AdminSync = domain.Normalize(e.AdminSync)
	}
	a.checkRegs.Set(ctx, key, entries, a.cacheLifetime)
	return entries, nil
}

func (a *userOwn) ReadTimeOffTracker(ctx context.Context, year int) (*domain.TimeOffTracker, error) {
	key := fmt.Sprintf("%s_%d_%d", domain.FileTimeOff, a.user.UserID, year)
	if !a.skipCache {
		if cached, ok := a.timeOff.Get(ctx, key); ok {
			return cached, nil
		}
	}
	fp, err := a.deps.Resolver.ResolveLocal(domain.FileTimeOff, a.user, paths.Params{Year: year, Month: time.January})
	if err != nil {
		return nil, err
	}
	tracker, err := readOne[domain.TimeOffTracker](fp.Path)
	if err != nil {
		log.ErrorErr(log.CatStore, err, "time off read failed, serving empty", "path", fp.Path)
		tracker = nil
	}
	if tracker == nil {
		tracker = &domain.TimeOffTracker{UserID: a.user.UserID, Year: year, Requests: []domain.TimeOffRequest{}}
	}
	a.timeOff.Set(ctx, key, tracker, a.cacheLifetime)
	return tracker, nil
}

// WriteWorktimeWithStatus promotes and persists a batch of entries for one
// period, then writes the merged list through to the cache.
func (a *userOwn) WriteWorktimeWithStatus(ctx context.Context, entries []*domain.WorktimeEntry, role domain.Role) error {
	if len(entries) == 0 {
		return nil
	}
	year, month, err := batchPeriod(entries)
	if err != nil {
		return err
	}
	fp, err := a.worktimePath(year, month)
	if err != nil {
		return err
	}

	lock := a.deps.Resolver.LockFor(fp.Path)
	if err := lock.AcquireWrite(ctx, writeLockBudget); err != nil {
		return err
	}
	defer lock.Unlock()

	persisted, err := readList[domain.WorktimeEntry](fp.Path)
	if err != nil {
		return err
	}
	persisted = normalizeWorktime(persisted)

	now := a.deps.Clock.Now()
	for _, incoming := range entries {
		if err := promoteStatus(persisted, incoming, role, now); err != nil {
			return err
		}
		persisted = upsert(persisted, incoming)
	}

	if err := a.persistLocked(fp, persisted); err != nil {
		return err
	}
	a.worktime.Set(ctx, cacheKey(domain.FileWorktime, a.user.UserID, year, month), persisted, a.cacheLifetime)
	return nil
}

// WriteWorktimeEntry promotes and persists a single entry.
func (a *userOwn) WriteWorktimeEntry(ctx context.Context, entry *domain.WorktimeEntry, role domain.Role) error {
	return a.WriteWorktimeWithStatus(ctx, []*domain.WorktimeEntry{entry}, role)
}

// persistLocked writes the list with its sidecar and tier policy. Caller
// holds the path lock.
func (a *userOwn) persistLocked(fp paths.FilePath, entries []*domain.WorktimeEntry) error {
	data, err := marshal(entries)
	if err != nil {
		return err
	}
	if err := backup.CreateSidecar(fp.Path); err != nil {
		return err
	}
	if err := writeFile(fp.Path, data); err != nil {
		return err
	}
	if a.deps.Backups != nil {
		if err := a.deps.Backups.AfterWrite(fp.Path, a.user.Username, domain.FileWorktime); err != nil {
			log.ErrorErr(log.CatBackup, err, "post-write backup failed", "path", fp.Path)
		}
	}
	return nil
}
