package accessor

import (
	"context"

	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
)

// admin reads like a network viewer but may write any user's network
// artifacts. Writes travel through the transaction manager so a failed
// multi-entry save rolls the file back.
type admin struct {
	*networkOnly
	deps Deps
}

func newAdmin(user domain.User, deps Deps) *admin {
	return &admin{networkOnly: newNetworkOnly(user, deps), deps: deps}
}

func (a *admin) SupportsWrite() bool { return true }

func (a *admin) WriteWorktimeWithStatus(ctx context.Context, entries []*domain.WorktimeEntry, role domain.Role) error {
	if len(entries) == 0 {
		return nil
	}
	year, month, err := batchPeriod(entries)
	if err != nil {
		return err
	}
	fp, err := a.deps.Resolver.ResolveNetwork(domain.FileWorktime, a.user, paths.Params{Year: year, Month: month})
	if err != nil {
		return err
	}

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

	data, err := marshal(persisted)
	if err != nil {
		return err
	}

	tx := a.deps.Txn.Begin()
	if err := tx.AddWrite(fp.Path, data, domain.FileWorktime); err != nil {
		return err
	}
	return tx.Commit(ctx).Err()
}

func (a *admin) WriteWorktimeEntry(ctx context.Context, entry *domain.WorktimeEntry, role domain.Role) error {
	return a.WriteWorktimeWithStatus(ctx, []*domain.WorktimeEntry{entry}, role)
}

var _ Accessor = (*admin)(nil)
var _ Accessor = (*networkOnly)(nil)
var _ Accessor = (*userOwn)(nil)
