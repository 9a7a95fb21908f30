package txn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
)

func newTestManager() *Manager {
	return NewManager(paths.NewLockRegistry())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCommit_WritesInOrder(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()

	p1 := filepath.Join(dir, "worktime", "worktime_mihai_2026_05.json")
	p2 := filepath.Join(dir, "status_mihai_7.json")
	require.NoError(t, tx.AddWrite(p1, []byte("one"), domain.FileWorktime))
	require.NoError(t, tx.AddWrite(p2, []byte("two"), domain.FileStatus))

	result := tx.Commit(context.Background())
	require.True(t, result.Success)
	require.NoError(t, result.Err())
	require.Len(t, result.Ops, 2)
	require.Equal(t, StateCommitted, tx.State())

	require.Equal(t, "one", readFile(t, p1))
	require.Equal(t, "two", readFile(t, p2))
}

func TestCommit_FailureRestoresSnapshots(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()

	p1 := filepath.Join(dir, "p1.json")
	writeFile(t, p1, "original-1")

	// A directory at p2 makes its write fail after p1 has been overwritten.
	p2 := filepath.Join(dir, "p2.json")
	require.NoError(t, os.MkdirAll(p2, 0o755))
	writeFile(t, filepath.Join(p2, "marker"), "x")

	require.NoError(t, tx.AddWrite(p1, []byte("new-1"), domain.FileWorktime))
	require.NoError(t, tx.AddWrite(p2, []byte("new-2"), domain.FileWorktime))

	result := tx.Commit(context.Background())
	require.False(t, result.Success)
	require.Error(t, result.Err())
	require.Equal(t, StateRolledBack, tx.State())
	require.Empty(t, result.RollbackErrs)

	require.Equal(t, "original-1", readFile(t, p1), "p1 must hold its pre-commit bytes")
}

func TestCommit_NewFileSurvivesRollback(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()

	created := filepath.Join(dir, "fresh.json")
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.MkdirAll(broken, 0o755))

	require.NoError(t, tx.AddWrite(created, []byte("kept"), domain.FileWorktime))
	require.NoError(t, tx.AddWrite(broken, []byte("boom"), domain.FileWorktime))

	result := tx.Commit(context.Background())
	require.False(t, result.Success)

	// No snapshot existed for the new file, so rollback leaves it alone.
	require.Equal(t, "kept", readFile(t, created))
}

func TestCommit_SyncCopiesAndKeepsSidecar(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()

	src := filepath.Join(dir, "local", "session_mihai_7.json")
	tgt := filepath.Join(dir, "network", "session_mihai_7.json")
	writeFile(t, src, "fresh")
	writeFile(t, tgt, "stale")

	require.NoError(t, tx.AddSync(src, tgt, domain.FileSession))
	result := tx.Commit(context.Background())
	require.True(t, result.Success)

	require.Equal(t, "fresh", readFile(t, tgt))
	require.Equal(t, "stale", readFile(t, backup.SidecarPath(tgt)),
		"medium tier keeps the pre-sync sidecar")
}

func TestCommit_SyncDropsLowTierSidecar(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()

	src := filepath.Join(dir, "local", "status_mihai_7.json")
	tgt := filepath.Join(dir, "network", "status_mihai_7.json")
	writeFile(t, src, "fresh")
	writeFile(t, tgt, "stale")

	require.NoError(t, tx.AddSync(src, tgt, domain.FileStatus))
	require.True(t, tx.Commit(context.Background()).Success)

	_, err := os.Stat(backup.SidecarPath(tgt))
	require.True(t, os.IsNotExist(err))
}

func TestCommit_SyncMissingSourceFailsAndRestores(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()

	tgt := filepath.Join(dir, "worktime_mihai_2026_05.json")
	writeFile(t, tgt, "original")

	require.NoError(t, tx.AddSync(filepath.Join(dir, "absent.json"), tgt, domain.FileWorktime))
	result := tx.Commit(context.Background())
	require.False(t, result.Success)
	require.Equal(t, "original", readFile(t, tgt))
}

func TestTransaction_TerminalAfterCommit(t *testing.T) {
	dir := t.TempDir()
	tx := newTestManager().Begin()
	require.NoError(t, tx.AddWrite(filepath.Join(dir, "a.json"), []byte("a"), domain.FileStatus))
	require.True(t, tx.Commit(context.Background()).Success)

	require.ErrorIs(t, tx.AddWrite(filepath.Join(dir, "b.json"), []byte("b"), domain.FileStatus), ErrNotActive)
	require.ErrorIs(t, tx.AddSync("x", "y", domain.FileStatus), ErrNotActive)

	again := tx.Commit(context.Background())
	require.False(t, again.Success)
	require.ErrorIs(t, again.Ops[0].Err, ErrNotActive)
}

func TestCommit_LockContentionTimesOut(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager()
	m.lockBudget = 50 * time.Millisecond

	contested := filepath.Join(dir, "contested.json")
	m.locks.For(contested).Lock()
	defer m.locks.For(contested).Unlock()

	tx := m.Begin()
	require.NoError(t, tx.AddWrite(contested, []byte("x"), domain.FileWorktime))
	result := tx.Commit(context.Background())
	require.False(t, result.Success)
	require.ErrorIs(t, result.Ops[0].Err, paths.ErrLockTimeout)
	require.Equal(t, StateRolledBack, tx.State())
}

func TestBegin_UniqueIDs(t *testing.T) {
	m := newTestManager()
	require.NotEqual(t, m.Begin().ID(), m.Begin().ID())
}
