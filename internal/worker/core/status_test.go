package core_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T) rueidis.Client {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestMonitorReportAndList(t *testing.T) {
	t.Parallel()

	client := newClient(t)
	monitor := core.NewMonitor(client, zap.NewNop())
	ctx := t.Context()

	require.NoError(t, monitor.ReportStatus(ctx, core.Status{WorkerID: "b", WorkerType: "recovery", SubType: "main"}))
	require.NoError(t, monitor.ReportStatus(ctx, core.Status{
		WorkerID: "a", WorkerType: "analysis", SubType: "main", CurrentTask: "Analyzing", Progress: 50, IsHealthy: true,
	}))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "analysis", statuses[0].WorkerType)
	assert.Equal(t, "Analyzing", statuses[0].CurrentTask)
	assert.Equal(t, 50, statuses[0].Progress)
	assert.True(t, statuses[0].IsOnline(time.Now()))
	assert.Equal(t, "recovery", statuses[1].WorkerType)
}

func TestStatusIsOnline(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name     string
		lastSeen time.Time
		want     bool
	}{
		{name: "fresh", lastSeen: now.Add(-5 * time.Second), want: true},
		{name: "stale", lastSeen: now.Add(-2 * core.StaleThreshold), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status := core.Status{LastSeen: tt.lastSeen}
			assert.Equal(t, tt.want, status.IsOnline(now))
		})
	}
}

func TestStatusReporterPublishesOnStart(t *testing.T) {
	t.Parallel()

	client := newClient(t)
	reporter := core.NewStatusReporter(client, "analysis", "main", "", zap.NewNop())
	reporter.UpdateStatus("Idle", 0)
	reporter.Start(t.Context())
	t.Cleanup(reporter.Stop)

	monitor := core.NewMonitor(client, zap.NewNop())
	require.Eventually(t, func() bool {
		statuses, err := monitor.GetAllStatuses(t.Context())
		return err == nil && len(statuses) == 1 && statuses[0].WorkerID == reporter.GetWorkerID()
	}, 2*time.Second, 20*time.Millisecond)
}
