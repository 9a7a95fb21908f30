package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/chronotable/timecard/internal/liveness"
)

var errTick = errors.New("tick blew up")

func TestRecordTaskExecution_ResetsFailureStreak(t *testing.T) {
	m := NewMonitor(WithClock(clockwork.NewFakeClock()))
	m.RegisterTask("sync-worker", time.Minute, nil)

	m.RecordTaskFailure("sync-worker", errTick)
	m.RecordTaskFailure("sync-worker", errTick)
	m.RecordTaskExecution("sync-worker")

	report := m.Report()
	require.Len(t, report, 1)
	require.Zero(t, report[0].ConsecutiveFailures)
	require.Empty(t, report[0].LastError)
	require.True(t, report[0].Healthy)
}

func TestRecoveryFiresAtThreshold(t *testing.T) {
	m := NewMonitor(WithClock(clockwork.NewFakeClock()))

	var got []TaskStatus
	m.RegisterTask("orphan-gc", time.Hour, func(status TaskStatus) {
		got = append(got, status)
	})

	for range 3 {
		m.RecordTaskFailure("orphan-gc", errTick)
	}
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].ConsecutiveFailures)
	require.Equal(t, errTick.Error(), got[0].LastError)
	require.False(t, got[0].Healthy)
}

func TestRecoveryCooldown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMonitor(WithClock(clock))

	fired := 0
	m.RegisterTask("orphan-gc", time.Hour, func(TaskStatus) { fired++ })

	for range 6 {
		m.RecordTaskFailure("orphan-gc", errTick)
	}
	require.Equal(t, 1, fired, "recovery must not re-fire inside the cooldown window")

	clock.Advance(recoveryCooldown + time.Second)
	m.RecordTaskFailure("orphan-gc", errTick)
	require.Equal(t, 2, fired)
}

func TestUnhealthyWhenStale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMonitor(WithClock(clock))
	m.RegisterTask("notification-queue-processor", time.Minute, nil)

	require.True(t, m.Healthy())
	clock.Advance(4 * time.Minute)
	require.False(t, m.Healthy(), "a task idle for over 3 intervals is stale")

	m.RecordTaskExecution("notification-queue-processor")
	require.True(t, m.Healthy())
}

func TestUnknownTaskIsIgnored(t *testing.T) {
	m := NewMonitor()
	m.RecordTaskExecution("ghost")
	m.RecordTaskFailure("ghost", errTick)
	require.Empty(t, m.Report())
}

func TestRoutes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMonitor(WithClock(clock))
	m.RegisterTask("sync-worker", time.Minute, nil)

	network := liveness.NewMonitor(liveness.Config{NetworkRoot: `\\nas\timecard`},
		liveness.WithClock(clock))
	t.Cleanup(network.Close)

	server := httptest.NewServer(Routes(m, network))
	t.Cleanup(server.Close)

	t.Run("healthz ok", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("tasks report", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/tasks")
		require.NoError(t, err)
		defer resp.Body.Close()
		var report []TaskStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		require.Len(t, report, 1)
		require.Equal(t, "sync-worker", report[0].ID)
	})

	t.Run("network snapshot", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/network")
		require.NoError(t, err)
		defer resp.Body.Close()
		var status liveness.Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		require.False(t, status.Available)
	})

	t.Run("healthz degraded", func(t *testing.T) {
		clock.Advance(10 * time.Minute)
		resp, err := http.Get(server.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
