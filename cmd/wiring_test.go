package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chronotable/timecard/internal/accessor"
	"github.com/chronotable/timecard/internal/config"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
)

// staleServices builds services over temp roots for the archive tests.
func staleServices(t *testing.T) *services {
	t.Helper()
	resetConfig(t)
	cfg = config.Defaults()
	cfg.LocalRoot = t.TempDir()
	cfg.NetworkRoot = t.TempDir()
	cfg.User.Username = "mihai"
	cfg.User.UserID = 7

	svc, err := buildServices()
	require.NoError(t, err)
	return svc
}

func writeSessionFile(t *testing.T, svc *services, session *domain.Session) string {
	t.Helper()
	fp, err := svc.resolver.ResolveLocal(domain.FileSession, svc.user, paths.Params{})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(fp.Path), 0o755))
	data, err := json.Marshal(session)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fp.Path, data, 0o644))
	return fp.Path
}

func TestArchiveStaleSession_WritesWorktimeRow(t *testing.T) {
	svc := staleServices(t)

	start := time.Date(2026, time.May, 13, 8, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.May, 13, 17, 0, 0, 0, time.UTC)
	stale := domain.NewSession("mihai", 7, start)
	stale.SessionStatus = domain.WorkOnline
	stale.DayStartTime = &start
	stale.CurrentStartTime = &start
	stale.TotalWorkedMinutes = 510
	stale.TotalOvertimeMinutes = 60
	stale.TotalTemporaryStopMinutes = 30
	stale.TemporaryStopCount = 1
	stale.LunchBreakDeducted = true
	stale.LastActivity = last
	writeSessionFile(t, svc, stale)

	require.NoError(t, svc.archiveStaleSession(context.Background(), stale))

	// The unfinished day's totals land in that day's worktime row.
	acc := accessor.For(svc.user, svc.user, accessor.Deps{
		Resolver: svc.resolver, Txn: svc.txns, Backups: svc.backups, SkipCache: true,
	})
	entries, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, 7, entry.UserID)
	require.Equal(t, time.Date(2026, time.May, 13, 0, 0, 0, 0, time.UTC), entry.WorkDate)
	require.Equal(t, 510, entry.TotalWorkedMinutes)
	require.Equal(t, 60, entry.TotalOvertimeMinutes)
	require.Equal(t, 30, entry.TotalTemporaryStopMinutes)
	require.True(t, entry.LunchBreakDeducted)
	require.Equal(t, domain.StatusUserInput, entry.AdminSync)
	require.NotNil(t, entry.DayEndTime)
	require.Equal(t, last, entry.DayEndTime.UTC(), "an open session closes at its last activity")

	// The session file itself is preserved as a timestamped backup.
	backups, err := svc.backups.ListAvailable("mihai", domain.FileSession)
	require.NoError(t, err)
	require.NotEmpty(t, backups)
}

func TestArchiveStaleSession_NeverStartedDayHasNoRow(t *testing.T) {
	svc := staleServices(t)

	stale := domain.NewSession("mihai", 7, time.Date(2026, time.May, 13, 8, 0, 0, 0, time.UTC))
	writeSessionFile(t, svc, stale)

	require.NoError(t, svc.archiveStaleSession(context.Background(), stale))

	acc := accessor.For(svc.user, svc.user, accessor.Deps{
		Resolver: svc.resolver, Txn: svc.txns, Backups: svc.backups, SkipCache: true,
	})
	entries, err := acc.ReadWorktime(context.Background(), 2026, time.May)
	require.NoError(t, err)
	require.Empty(t, entries, "a session without a day start carries no minutes")
}
