package liveness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var errProbeDown = errors.New("share unreachable")

// scriptedProbe returns probe results from a mutable flag.
type scriptedProbe struct {
	up bool
}

func (p *scriptedProbe) probe(ctx context.Context, root string) error {
	if p.up {
		return nil
	}
	return errProbeDown
}

func newTestMonitor(t *testing.T, probe *scriptedProbe, clock clockwork.Clock) *Monitor {
	t.Helper()
	m := NewMonitor(Config{
		NetworkRoot:      `\\nas\timecard`,
		MonitorInterval:  time.Hour,
		DebounceInterval: 10 * time.Second,
		JitterThreshold:  3,
		Retries:          1,
	}, WithClock(clock), WithProbe(probe.probe))
	t.Cleanup(m.Close)
	return m
}

func TestMonitor_StartsUnavailable(t *testing.T) {
	m := newTestMonitor(t, &scriptedProbe{}, clockwork.NewFakeClock())
	require.False(t, m.IsAvailable())
}

func TestMonitor_InitialDetectionSkipsDebounce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestMonitor(t, &scriptedProbe{up: true}, clock)

	// Still in the initial phase: a single up observation flips the flag.
	m.ProbeOnce(context.Background())
	require.True(t, m.IsAvailable())
}

func TestMonitor_JitterFilterRejectsShortFlap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probe := &scriptedProbe{}
	m := newTestMonitor(t, probe, clock)
	m.endInitialPhase()

	// Steady down, then only two up observations: below the threshold of 3.
	probe.up = true
	m.ProbeOnce(context.Background())
	m.ProbeOnce(context.Background())
	require.False(t, m.IsAvailable(), "two observations must not flip the flag")

	m.ProbeOnce(context.Background())
	require.True(t, m.IsAvailable(), "third observation passes the jitter filter")
}

func TestMonitor_OppositeObservationResetsStability(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probe := &scriptedProbe{}
	m := newTestMonitor(t, probe, clock)
	m.endInitialPhase()

	probe.up = true
	m.ProbeOnce(context.Background())
	m.ProbeOnce(context.Background())
	probe.up = false
	m.ProbeOnce(context.Background()) // matches current state, resets counter
	probe.up = true
	m.ProbeOnce(context.Background())
	m.ProbeOnce(context.Background())
	require.False(t, m.IsAvailable(), "stability counter must restart after a reset")
}

func TestMonitor_DebounceDiscardsFreshFlip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probe := &scriptedProbe{up: true}
	m := newTestMonitor(t, probe, clock)

	// Flip up during initial detection, then immediately observe downs.
	m.ProbeOnce(context.Background())
	require.True(t, m.IsAvailable())
	m.endInitialPhase()

	probe.up = false
	for range 3 {
		m.ProbeOnce(context.Background())
	}
	require.True(t, m.IsAvailable(), "change within the debounce window is discarded")

	// Once the window has passed the same observations are accepted.
	clock.Advance(11 * time.Second)
	m.ProbeOnce(context.Background())
	require.False(t, m.IsAvailable())
}

func TestMonitor_ChangesBroadcast(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probe := &scriptedProbe{up: true}
	m := newTestMonitor(t, probe, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := m.Changes(ctx)

	m.ProbeOnce(context.Background())

	select {
	case event := <-changes:
		require.True(t, event.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected an availability broadcast")
	}
}

func TestMonitor_StatusTracksFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probe := &scriptedProbe{}
	m := newTestMonitor(t, probe, clock)
	m.endInitialPhase()

	m.ProbeOnce(context.Background())
	m.ProbeOnce(context.Background())
	status := m.CurrentStatus()
	require.Equal(t, 2, status.ConsecutiveFailures)
	require.False(t, status.Available)

	probe.up = true
	m.ProbeOnce(context.Background())
	require.Zero(t, m.CurrentStatus().ConsecutiveFailures)
}

func TestFilesystemProbe(t *testing.T) {
	t.Run("readable directory is up", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, filesystemProbe(context.Background(), dir))
	})

	t.Run("missing directory is down", func(t *testing.T) {
		err := filesystemProbe(context.Background(), "/definitely/not/here")
		require.Error(t, err)
	})

	t.Run("malformed root is down", func(t *testing.T) {
		err := filesystemProbe(context.Background(), "not-a-root")
		require.Error(t, err)
	})
}

func TestWellFormedRoot(t *testing.T) {
	tests := []struct {
		root string
		want bool
	}{
		{`\\nas\timecard`, true},
		{"//nas/timecard", true},
		{"/mnt/timecard", true},
		{`\nas\timecard`, false},
		{`nas\timecard`, false},
		{"nas/timecard", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			require.Equal(t, tt.want, wellFormedRoot(tt.root),
				"UNC roots need the leading double separator; only forward-slash absolute paths pass without it")
		})
	}
}
