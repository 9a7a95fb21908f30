package paths

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chronotable/timecard/internal/domain"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("/data/local", "/mnt/share")
	require.NoError(t, err)
	return r
}

var testUser = domain.User{Username: "mihai", UserID: 7}

func TestResolveLocal_Layout(t *testing.T) {
	r := testResolver(t)
	p := Params{Year: 2026, Month: time.May}

	tests := []struct {
		kind domain.FileKind
		want string
	}{
		{domain.FileSession, "/data/local/mihai/session_mihai_7.json"},
		{domain.FileWorktime, "/data/local/mihai/worktime/worktime_mihai_2026_05.json"},
		{domain.FileRegister, "/data/local/mihai/register/register_mihai_7_2026_05.json"},
		{domain.FileCheckRegister, "/data/local/mihai/check_register/check_register_mihai_7_2026_05.json"},
		{domain.FileTimeOff, "/data/local/mihai/timeoff/timeoff_mihai_7_2026.json"},
		{domain.FileUsers, "/data/local/users/users_mihai_7.json"},
		{domain.FileStatus, "/data/local/status/status_mihai_7.json"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			fp, err := r.ResolveLocal(tt.kind, testUser, p)
			require.NoError(t, err)
			require.Equal(t, filepath.FromSlash(tt.want), fp.Path)
			require.Equal(t, Local, fp.Kind)
			require.Equal(t, "mihai", fp.Username)
		})
	}
}

func TestResolveNetwork_LogPath(t *testing.T) {
	r := testResolver(t)

	fp, err := r.ResolveNetwork(domain.FileLog, testUser, Params{Version: "1.4.2"})
	require.NoError(t, err)
	require.Equal(t, filepath.FromSlash("/mnt/share/logs/mihai_1.4.2.log"), fp.Path)

	_, err = r.ResolveNetwork(domain.FileLog, testUser, Params{})
	require.Error(t, err, "version is required for log paths")
}

func TestResolveLocal_LogPanics(t *testing.T) {
	r := testResolver(t)
	require.Panics(t, func() {
		_, _ = r.ResolveLocal(domain.FileLog, testUser, Params{Version: "1.0.0"})
	})
}

func TestResolve_InvalidKindPanics(t *testing.T) {
	r := testResolver(t)
	require.Panics(t, func() {
		_, _ = r.ResolveLocal(domain.FileKind("bogus"), testUser, Params{})
	})
}

func TestResolve_MissingPeriod(t *testing.T) {
	r := testResolver(t)

	_, err := r.ResolveLocal(domain.FileWorktime, testUser, Params{})
	require.Error(t, err, "period is required unless the caller opts into now")

	fp, err := r.ResolveLocal(domain.FileWorktime, testUser, Params{UseCurrentPeriod: true})
	require.NoError(t, err)
	require.Contains(t, fp.Path, "worktime_mihai_")
}

func TestToNetworkAndBack(t *testing.T) {
	r := testResolver(t)

	local, err := r.ResolveLocal(domain.FileSession, testUser, Params{})
	require.NoError(t, err)

	network, err := r.ToNetwork(local)
	require.NoError(t, err)
	require.Equal(t, Network, network.Kind)
	require.Equal(t, filepath.FromSlash("/mnt/share/mihai/session_mihai_7.json"), network.Path)
	require.Equal(t, local.Username, network.Username)

	back, err := r.ToLocal(network)
	require.NoError(t, err)
	require.Equal(t, local, back)
}

func TestToNetwork_RejectsForeignPaths(t *testing.T) {
	r := testResolver(t)

	_, err := r.ToNetwork(FilePath{Path: "/elsewhere/file.json", Kind: Local})
	require.ErrorIs(t, err, ErrOutsideRoot)

	_, err = r.ToNetwork(FilePath{Path: "/mnt/share/mihai/session_mihai_7.json", Kind: Network})
	require.Error(t, err, "ToNetwork requires a LOCAL input")
}

func TestNormalizeNetworkRoot(t *testing.T) {
	tests := []struct{ in, want string }{
		{`\\server\share`, `\\server\share`},
		{`\\\\server\share`, `\\server\share`},
		{`"\\server\share"`, `\\server\share`},
		{`[//nas/timecard]`, `//nas/timecard`},
		{`////nas/timecard`, `//nas/timecard`},
		{`/mnt/share`, `/mnt/share`},
		{`relative/dir`, `relative/dir`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeNetworkRoot(tt.in))
		})
	}
}

func TestLockRegistry_Idempotent(t *testing.T) {
	reg := NewLockRegistry()
	a := reg.For("/data/a.json")
	b := reg.For("/data/a.json")
	require.Same(t, a, b)
	require.Equal(t, 1, reg.Len())

	reg.Reset()
	require.Equal(t, 0, reg.Len())
	require.NotSame(t, a, reg.For("/data/a.json"))
}

func TestPathLock_AcquireWriteTimesOut(t *testing.T) {
	lock := &PathLock{}
	lock.Lock()
	defer lock.Unlock()

	err := lock.AcquireWrite(context.Background(), 50*time.Millisecond)
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestPathLock_AcquireWriteHonorsContext(t *testing.T) {
	lock := &PathLock{}
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := lock.AcquireWrite(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPathLock_AcquireWriteSucceedsWhenFree(t *testing.T) {
	lock := &PathLock{}
	require.NoError(t, lock.AcquireWrite(context.Background(), time.Second))
	lock.Unlock()
}
