package stats_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/mangrovewatch/mangrove/internal/statistics"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"github.com/mangrovewatch/mangrove/internal/worker/stats"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errQueryFailed = errors.New("query failed")

type fakeStats struct {
	snapshots map[time.Time]*types.HourlyStats
	saveErr   error
	retention time.Duration
}

func (f *fakeStats) SaveHourlySnapshot(_ context.Context, now time.Time) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}

	hour := now.UTC().Truncate(time.Hour)
	if _, ok := f.snapshots[hour]; ok {
		return false, nil
	}

	f.snapshots[hour] = &types.HourlyStats{Timestamp: hour, TotalReports: int64(len(f.snapshots) + 1)}
	return true, nil
}

func (f *fakeStats) GetHourlyStats(_ context.Context, now time.Time) ([]*types.HourlyStats, error) {
	var out []*types.HourlyStats
	for hour, stat := range f.snapshots {
		if hour.After(now.Add(-24 * time.Hour)) {
			out = append(out, stat)
		}
	}
	return out, nil
}

func (f *fakeStats) PurgeOldStats(_ context.Context, now time.Time, retention time.Duration) (int64, error) {
	f.retention = retention

	var purged int64
	for hour := range f.snapshots {
		if hour.Before(now.Add(-retention)) {
			delete(f.snapshots, hour)
			purged++
		}
	}
	return purged, nil
}

func newWorker(t *testing.T, svc *fakeStats) (*stats.Worker, *statistics.ChartCache) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	logger := zap.NewNop()
	cache := statistics.NewChartCache(client, logger)
	reporter := core.NewStatusReporter(client, "stats", "", "test", logger)

	return stats.NewWorker(svc, cache, reporter, progress.NewBar(10, "stats"), 0, logger), cache
}

func TestRunOnceSavesPurgesAndRenders(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
	old := now.Truncate(time.Hour).Add(-40 * 24 * time.Hour)

	svc := &fakeStats{snapshots: map[time.Time]*types.HourlyStats{
		old: {Timestamp: old},
	}}
	worker, cache := newWorker(t, svc)
	ctx := t.Context()

	require.NoError(t, worker.RunOnce(ctx, now))

	assert.Len(t, svc.snapshots, 1)
	assert.Contains(t, svc.snapshots, now.Truncate(time.Hour))
	assert.Equal(t, stats.DefaultRetentionDays*24*time.Hour, svc.retention)

	for _, kind := range statistics.ChartKinds {
		png, err := cache.Get(ctx, kind)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}), kind)
	}
}

func TestRunOnceSameHourKeepsSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
	svc := &fakeStats{snapshots: map[time.Time]*types.HourlyStats{}}
	worker, _ := newWorker(t, svc)

	require.NoError(t, worker.RunOnce(t.Context(), now))
	first := svc.snapshots[now.Truncate(time.Hour)]

	require.NoError(t, worker.RunOnce(t.Context(), now.Add(30*time.Minute)))
	assert.Same(t, first, svc.snapshots[now.Truncate(time.Hour)])
}

func TestRunOnceSaveError(t *testing.T) {
	t.Parallel()

	svc := &fakeStats{snapshots: map[time.Time]*types.HourlyStats{}, saveErr: errQueryFailed}
	worker, cache := newWorker(t, svc)

	err := worker.RunOnce(t.Context(), time.Now())
	require.ErrorIs(t, err, errQueryFailed)

	png, err := cache.Get(t.Context(), statistics.ChartActivity)
	require.NoError(t, err)
	assert.Nil(t, png)
}
