package accessor

import (
	"context"
	"time"

	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
)

// networkOnly views another user's artifacts straight from the network
// store. It never writes and never caches: cross-user views must show what
// the shared store holds right now.
type networkOnly struct {
	user domain.User
	deps Deps
}

func newNetworkOnly(user domain.User, deps Deps) *networkOnly {
	return &networkOnly{user: user, deps: deps}
}

func (a *networkOnly) SupportsWrite() bool { return false }

func (a *networkOnly) ReadWorktime(ctx context.Context, year int, month time.Month) ([]*domain.WorktimeEntry, error) {
	fp, err := a.deps.Resolver.ResolveNetwork(domain.FileWorktime, a.user, paths.Params{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	entries, err := readList[domain.WorktimeEntry](fp.Path)
	if err != nil {
		return nil, err
	}
	return normalizeWorktime(entries), nil
}

func (a *networkOnly) ReadRegister(ctx context.Context, year int, month time.Month) ([]*domain.RegisterEntry, error) {
	fp, err := a.deps.Resolver.ResolveNetwork(domain.FileRegister, a.user, paths.Params{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	entries, err := readList[domain.RegisterEntry](fp.Path)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.AdminSync = domain.Normalize(e.AdminSync)
	}
	return entries, nil
}

func (a *networkOnly) ReadCheckRegister(ctx context.Context, year int, month time.Month) ([]*domain.CheckRegisterEntry, error) {
	fp, err := a.deps.Resolver.ResolveNetwork(domain.FileCheckRegister, a.user, paths.Params{Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	entries, err := readList[domain.CheckRegisterEntry](fp.Path)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.AdminSync = domain.Normalize(e.AdminSync)
	}
	return entries, nil
}

func (a *networkOnly) ReadTimeOffTracker(ctx context.Context, year int) (*domain.TimeOffTracker, error) {
	fp, err := a.deps.Resolver.ResolveNetwork(domain.FileTimeOff, a.user, paths.Params{Year: year, Month: time.January})
	if err != nil {
		return nil, err
	}
	tracker, err := readOne[domain.TimeOffTracker](fp.Path)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = &domain.TimeOffTracker{UserID: a.user.UserID, Year: year, Requests: []domain.TimeOffRequest{}}
	}
	return tracker, nil
}

func (a *networkOnly) WriteWorktimeWithStatus(ctx context.Context, entries []*domain.WorktimeEntry, role domain.Role) error {
	return ErrReadOnly
}

func (a *networkOnly) WriteWorktimeEntry(ctx context.Context, entry *domain.WorktimeEntry, role domain.Role) error {
	return ErrReadOnly
}
