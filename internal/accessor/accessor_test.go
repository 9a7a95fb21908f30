package accessor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
	"github.com/chronotable/timecard/internal/txn"
)

var (
	alice = domain.User{Username: "alice", UserID: 1, Role: domain.RoleUser, ScheduleHours: 8}
	bob   = domain.User{Username: "bob", UserID: 2, Role: domain.RoleUser, ScheduleHours: 8}
	boss  = domain.User{Username: "boss", UserID: 9, Role: domain.RoleAdmin, ScheduleHours: 8}
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	localRoot := t.TempDir()
	networkRoot := t.TempDir()
	resolver, err := paths.NewResolver(localRoot, networkRoot)
	require.NoError(t, err)
	return Deps{
		Resolver: resolver,
		Txn:      txn.NewManager(resolver.Locks()),
		Backups:  backup.NewService(filepath.Join(localRoot, "backups")),
		Clock:    clockwork.NewFakeClockAt(time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)),
	}
}

func entry(userID int, date time.Time, minutes int) *domain.WorktimeEntry {
	return &domain.WorktimeEntry{UserID: userID, WorkDate: date, TotalWorkedMinutes: minutes}
}

func seedWorktime(t *testing.T, path string, entries []*domain.WorktimeEntry) {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestFor_Routing(t *testing.T) {
	deps := testDeps(t)

	require.IsType(t, &userOwn{}, For(alice, alice, deps))
	require.IsType(t, &networkOnly{}, For(alice, bob, deps))
	require.IsType(t, &admin{}, For(boss, alice, deps))
	require.IsType(t, &userOwn{}, For(boss, boss, deps), "admins own their own data too")
}

func TestUserOwn_WriteAssignsBaseInputStatus(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps)
	require.True(t, acc.SupportsWrite())

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	e := entry(alice.UserID, date, 480)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), e, domain.RoleUser))
	require.Equal(t, domain.StatusUserInput, e.AdminSync)

	got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusUserInput, got[0].AdminSync)
}

func TestUserOwn_RewriteGetsTimestampedEditStatus(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps)

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), entry(alice.UserID, date, 480), domain.RoleUser))

	updated := entry(alice.UserID, date, 510)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), updated, domain.RoleUser))

	want := domain.NewEditedStatus(domain.EditorUser, deps.Clock.Now())
	require.Equal(t, want, updated.AdminSync)
}

func TestUserOwn_CannotModifyFinalEntry(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps)

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	sealed := entry(alice.UserID, date, 480)
	sealed.AdminSync = domain.StatusAdminFinal
	fp, err := deps.Resolver.ResolveLocal(domain.FileWorktime, alice, paths.Params{Year: 2026, Month: time.May})
	require.NoError(t, err)
	seedWorktime(t, fp.Path, []*domain.WorktimeEntry{sealed})

	err = acc.WriteWorktimeEntry(context.Background(), entry(alice.UserID, date, 510), domain.RoleUser)
	require.ErrorIs(t, err, ErrFinalEntry)
}

func TestUserOwn_CorruptFileServesEmergencyEmpty(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps)

	fp, err := deps.Resolver.ResolveLocal(domain.FileWorktime, alice, paths.Params{Year: 2026, Month: time.May})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(fp.Path), 0o755))
	require.NoError(t, os.WriteFile(fp.Path, []byte("{not json"), 0o644))

	got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestUserOwn_ReadNormalizesLegacyStatuses(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps)

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	legacy := entry(alice.UserID, date, 480)
	legacy.AdminSync = "SYNCED_V1"
	fp, err := deps.Resolver.ResolveLocal(domain.FileWorktime, alice, paths.Params{Year: 2026, Month: time.May})
	require.NoError(t, err)
	seedWorktime(t, fp.Path, []*domain.WorktimeEntry{legacy})

	got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusUserInput, got[0].AdminSync)
}

func TestUserOwn_WriteIsCached(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps).(*userOwn)

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), entry(alice.UserID, date, 480), domain.RoleUser))

	// Remove the file behind the cache: the write-through copy still serves.
	fp, err := deps.Resolver.ResolveLocal(domain.FileWorktime, alice, paths.Params{Year: 2026, Month: time.May})
	require.NoError(t, err)
	require.NoError(t, os.Remove(fp.Path))

	got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestWriteWorktime_RejectsMixedPeriodBatch(t *testing.T) {
	deps := testDeps(t)

	batch := []*domain.WorktimeEntry{
		entry(alice.UserID, time.Date(2026, 5, 29, 0, 0, 0, 0, time.UTC), 480),
		entry(alice.UserID, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 480),
	}

	t.Run("own store", func(t *testing.T) {
		acc := For(alice, alice, deps)
		err := acc.WriteWorktimeWithStatus(context.Background(), batch, domain.RoleUser)
		require.ErrorIs(t, err, ErrMixedPeriods)

		// Nothing may land in either month's file.
		got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("admin store", func(t *testing.T) {
		acc := For(boss, alice, deps)
		err := acc.WriteWorktimeWithStatus(context.Background(), batch, domain.RoleAdmin)
		require.ErrorIs(t, err, ErrMixedPeriods)
	})

	t.Run("same month different days is fine", func(t *testing.T) {
		acc := For(bob, bob, deps)
		ok := []*domain.WorktimeEntry{
			entry(bob.UserID, time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC), 480),
			entry(bob.UserID, time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC), 510),
		}
		require.NoError(t, acc.WriteWorktimeWithStatus(context.Background(), ok, domain.RoleUser))

		got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
		require.NoError(t, err)
		require.Len(t, got, 2)
	})
}

func TestNetworkOnly_ReadsNetworkStoreAndRejectsWrites(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, bob, deps)
	require.False(t, acc.SupportsWrite())

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	fp, err := deps.Resolver.ResolveNetwork(domain.FileWorktime, bob, paths.Params{Year: 2026, Month: time.May})
	require.NoError(t, err)
	seedWorktime(t, fp.Path, []*domain.WorktimeEntry{entry(bob.UserID, date, 480)})

	got, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.ErrorIs(t, acc.WriteWorktimeEntry(context.Background(), entry(bob.UserID, date, 500), domain.RoleUser), ErrReadOnly)
	require.ErrorIs(t, acc.WriteWorktimeWithStatus(context.Background(), nil, domain.RoleUser), ErrReadOnly)
}

func TestAdmin_WritesNetworkStoreWithAdminStatus(t *testing.T) {
	deps := testDeps(t)
	acc := For(boss, alice, deps)
	require.True(t, acc.SupportsWrite())

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	e := entry(alice.UserID, date, 480)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), e, domain.RoleAdmin))
	require.Equal(t, domain.StatusAdminInput, e.AdminSync)

	fp, err := deps.Resolver.ResolveNetwork(domain.FileWorktime, alice, paths.Params{Year: 2026, Month: time.May})
	require.NoError(t, err)
	got, err := readList[domain.WorktimeEntry](fp.Path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusAdminInput, got[0].AdminSync)
}

func TestAdmin_EditGetsAdminEditedStatus(t *testing.T) {
	deps := testDeps(t)
	acc := For(boss, alice, deps)

	date := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), entry(alice.UserID, date, 480), domain.RoleAdmin))

	updated := entry(alice.UserID, date, 510)
	require.NoError(t, acc.WriteWorktimeEntry(context.Background(), updated, domain.RoleAdmin))
	require.Equal(t, domain.NewEditedStatus(domain.EditorAdmin, deps.Clock.Now()), updated.AdminSync)
}

func TestReadTimeOffTracker_MissingFileYieldsEmptyTracker(t *testing.T) {
	deps := testDeps(t)
	acc := For(alice, alice, deps)

	tracker, err := acc.ReadTimeOffTracker(context.Background(), 2026)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, tracker.UserID)
	require.Equal(t, 2026, tracker.Year)
	require.Empty(t, tracker.Requests)
}
