package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/mangrovewatch/mangrove/internal/redis"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/statistics"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"go.uber.org/zap"
)

// DefaultRetentionDays is how long hourly snapshots are kept.
const DefaultRetentionDays = 30

// Service stores and reads hourly snapshots.
type Service interface {
	SaveHourlySnapshot(ctx context.Context, now time.Time) (bool, error)
	GetHourlyStats(ctx context.Context, now time.Time) ([]*types.HourlyStats, error)
	PurgeOldStats(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// Worker handles hourly statistics snapshots.
type Worker struct {
	stats     Service
	charts    *statistics.ChartCache
	bar       *progress.Bar
	reporter  *core.StatusReporter
	logger    *zap.Logger
	retention time.Duration
}

// New creates a stats worker wired to the application's database and cache.
func New(app *setup.App, bar *progress.Bar, workerID string, logger *zap.Logger) (*Worker, error) {
	cacheClient, err := app.RedisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, err
	}

	reporter := core.NewStatusReporter(app.StatusClient, "stats", "", workerID, logger)
	charts := statistics.NewChartCache(cacheClient, logger)

	return NewWorker(app.DB.Service().Stats(), charts, reporter, bar, app.Config.Worker.Stats.RetentionDays, logger), nil
}

// NewWorker creates a stats worker from its parts.
func NewWorker(
	stats Service, charts *statistics.ChartCache, reporter *core.StatusReporter,
	bar *progress.Bar, retentionDays int, logger *zap.Logger,
) *Worker {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	return &Worker{
		stats:     stats,
		charts:    charts,
		bar:       bar,
		reporter:  reporter,
		logger:    logger.Named("stats_worker"),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start snapshots the current hour, then every following hour, until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Statistics Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	for {
		w.bar.Reset()
		w.reporter.SetHealthy(true)

		if err := w.RunOnce(ctx, time.Now()); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("Failed to update statistics", zap.Error(err))
			w.reporter.SetHealthy(false)
		}

		// Wait until the start of the next hour
		w.bar.SetStepMessage("Waiting for next hour", 100)
		w.reporter.UpdateStatus("Waiting for next hour", 100)

		nextHour := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
		if utils.ContextSleep(ctx, time.Until(nextHour)) == utils.SleepCancelled {
			break
		}
	}

	w.logger.Info("Statistics Worker stopped")
}

// RunOnce saves the snapshot for the hour containing now, purges expired
// snapshots and refreshes the cached charts.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	// Step 1: Save snapshot (25%)
	w.bar.SetStepMessage("Saving statistics", 25)
	w.reporter.UpdateStatus("Saving statistics", 25)

	saved, err := w.stats.SaveHourlySnapshot(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to save hourly stats: %w", err)
	}
	if !saved {
		w.logger.Debug("Snapshot for this hour already exists")
	}

	// Step 2: Clean up old stats (50%)
	w.bar.SetStepMessage("Cleaning up old stats", 50)
	w.reporter.UpdateStatus("Cleaning up old stats", 50)

	purged, err := w.stats.PurgeOldStats(ctx, now, w.retention)
	if err != nil {
		return fmt.Errorf("failed to purge old stats: %w", err)
	}

	// Step 3: Render charts (75%)
	w.bar.SetStepMessage("Rendering charts", 75)
	w.reporter.UpdateStatus("Rendering charts", 75)

	history, err := w.stats.GetHourlyStats(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to get hourly stats: %w", err)
	}

	if err := statistics.RefreshCharts(ctx, w.charts, statistics.NewChartBuilder(history, now)); err != nil {
		return err
	}

	w.bar.SetStepMessage("Statistics updated", 100)
	w.reporter.UpdateStatus("Statistics updated", 100)

	w.logger.Info("Hourly statistics updated",
		zap.Bool("saved", saved),
		zap.Int64("purged", purged),
		zap.Int("history", len(history)))

	return nil
}
