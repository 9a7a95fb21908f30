package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// The logger is a process-wide singleton guarded by sync.Once, so all
// assertions share one initialization against one file.
func TestLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timecard.log")
	cleanup, err := Init(path)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	read := func() string {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return string(data)
	}

	t.Run("leveled entry with fields", func(t *testing.T) {
		Info(CatSync, "sync completed", "user", "mihai", "ops", 6)
		require.Contains(t, read(), "[INFO] [sync] sync completed user=mihai ops=6")
	})

	t.Run("error value becomes a field", func(t *testing.T) {
		ErrorErr(CatTxn, errors.New("disk full"), "operation failed", "path", "/tmp/x.json")
		require.Contains(t, read(), "[ERROR] [txn] operation failed path=/tmp/x.json error=disk full")
	})

	t.Run("nil error is tolerated", func(t *testing.T) {
		ErrorErr(CatStore, nil, "read failed, serving empty")
		require.Contains(t, read(), "[ERROR] [store] read failed, serving empty error=<nil>")
	})

	t.Run("min level filters", func(t *testing.T) {
		SetMinLevel(LevelWarn)
		defer SetMinLevel(LevelDebug)
		Debug(CatCache, "cache miss", "key", "worktime_7_2026_05")
		require.NotContains(t, read(), "cache miss")
	})
}
