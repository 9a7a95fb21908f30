// Package accessor routes data reads and writes by (caller role, target
// user): users work on their own local artifacts through a write-through
// cache, cross-user views read the network store, and admin writes travel
// through the transaction manager.
package accessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
	"github.com/chronotable/timecard/internal/txn"
)

// ErrReadOnly is returned by accessors that do not support writes.
var ErrReadOnly = errors.New("accessor: accessor is read-only")

// ErrFinalEntry rejects modification of a finalized entry.
var ErrFinalEntry = errors.New("accessor: cannot modify final entry")

// ErrMixedPeriods rejects a write batch spanning more than one monthly file.
var ErrMixedPeriods = errors.New("accessor: entries span multiple periods")

// Accessor is the per-(caller, target) data strategy. The target user is
// bound at construction.
type Accessor interface {
	ReadWorktime(ctx context.Context, year int, month time.Month) ([]*domain.WorktimeEntry, error)
	ReadRegister(ctx context.Context, year int, month time.Month) ([]*domain.RegisterEntry, error)
	ReadCheckRegister(ctx context.Context, year int, month time.Month) ([]*domain.CheckRegisterEntry, error)
	ReadTimeOffTracker(ctx context.Context, year int) (*domain.TimeOffTracker, error)

	// SupportsWrite reports whether the write methods are usable.
	SupportsWrite() bool
	WriteWorktimeWithStatus(ctx context.Context, entries []*domain.WorktimeEntry, role domain.Role) error
	WriteWorktimeEntry(ctx context.Context, entry *domain.WorktimeEntry, role domain.Role) error
}

// Deps bundles the collaborators every accessor strategy draws from.
type Deps struct {
	Resolver  *paths.Resolver
	Txn       *txn.Manager
	Backups   *backup.Service
	Clock     clockwork.Clock
	SkipCache bool
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return d
}

// For selects the strategy: own data is local and writable, admin callers
// get elevated network access, everyone else views the network read-only.
func For(caller, target domain.User, deps Deps) Accessor {
	deps = deps.withDefaults()
	switch {
	case caller.UserID == target.UserID:
		return newUserOwn(target, deps)
	case caller.Role == domain.RoleAdmin:
		return newAdmin(target, deps)
	default:
		return newNetworkOnly(target, deps)
	}
}

// batchPeriod returns the single (year, month) a write batch belongs to. One
// batch maps to one monthly file; a mixed batch would mis-file every entry
// after the first under the first entry's month, so it is rejected outright.
func batchPeriod(entries []*domain.WorktimeEntry) (int, time.Month, error) {
	year, month := entries[0].WorkDate.Year(), entries[0].WorkDate.Month()
	for _, e := range entries[1:] {
		if e.WorkDate.Year() != year || e.WorkDate.Month() != month {
			return 0, 0, fmt.Errorf("%w: %s does not belong to %d-%02d",
				ErrMixedPeriods, e.MergeKey(), year, month)
		}
	}
	return year, month, nil
}

// promoteStatus applies the write-status rules against the persisted list:
// unknown or blank entries take the role's base input status, finalized
// entries reject modification, and everything else gets a fresh timestamped
// edit status.
func promoteStatus(persisted []*domain.WorktimeEntry, incoming *domain.WorktimeEntry, role domain.Role, now time.Time) error {
	var existing *domain.WorktimeEntry
	for _, e := range persisted {
		if e.MergeKey() == incoming.MergeKey() {
			existing = e
			break
		}
	}

	if existing == nil || existing.AdminSync == "" {
		incoming.AdminSync = domain.InputStatus(role.Editor())
		return nil
	}
	if domain.IsFinalStatus(existing.AdminSync) {
		return fmt.Errorf("%w: %s", ErrFinalEntry, incoming.MergeKey())
	}
	incoming.AdminSync = domain.NewEditedStatus(role.Editor(), now)
	return nil
}

// upsert replaces the persisted row with the incoming one, appending when no
// row shares its key. Order of untouched rows is preserved.
func upsert(persisted []*domain.WorktimeEntry, incoming *domain.WorktimeEntry) []*domain.WorktimeEntry {
	for i, e := range persisted {
		if e.MergeKey() == incoming.MergeKey() {
			persisted[i] = incoming
			return persisted
		}
	}
	return append(persisted, incoming)
}

// normalizeWorktime canonicalizes statuses on ingest.
func normalizeWorktime(entries []*domain.WorktimeEntry) []*domain.WorktimeEntry {
	for _, e := range entries {
		e.AdminSync = domain.Normalize(e.AdminSync)
	}
	return entries
}
