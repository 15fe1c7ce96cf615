package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/migrations"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// StatsModel handles database operations for statistics.
type StatsModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStats creates a new StatsModel.
func NewStats(db *bun.DB, logger *zap.Logger) *StatsModel {
	return &StatsModel{
		db:     db,
		logger: logger.Named("db_stats"),
	}
}

// GetSystemStats reads the dashboard counters from the materialized view.
func (r *StatsModel) GetSystemStats(ctx context.Context) (*types.SystemStats, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.SystemStats, error) {
		var stats types.SystemStats

		err := r.db.NewSelect().
			TableExpr(migrations.SystemStatsView).
			Column("total_users", "total_reports", "validated_reports", "total_uploads",
				"approved_uploads", "pending_analyses", "failed_analyses", "points_credited").
			Where("id = 1").
			Scan(ctx, &stats)
		if err != nil {
			return nil, fmt.Errorf("failed to get system stats: %w", err)
		}

		return &stats, nil
	})
}

// SaveHourlyStats saves the current statistics snapshot.
func (r *StatsModel) SaveHourlyStats(ctx context.Context, stats *types.HourlyStats) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(stats).
			On("CONFLICT (timestamp) DO UPDATE").
			Set("total_users = EXCLUDED.total_users").
			Set("total_reports = EXCLUDED.total_reports").
			Set("validated_reports = EXCLUDED.validated_reports").
			Set("total_uploads = EXCLUDED.total_uploads").
			Set("approved_uploads = EXCLUDED.approved_uploads").
			Set("pending_analyses = EXCLUDED.pending_analyses").
			Set("points_credited = EXCLUDED.points_credited").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save hourly stats: %w", err)
		}

		return nil
	})
}

// GetHourlyStats retrieves hourly statistics recorded at or after since.
func (r *StatsModel) GetHourlyStats(ctx context.Context, since time.Time) ([]*types.HourlyStats, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.HourlyStats, error) {
		var stats []*types.HourlyStats

		err := r.db.NewSelect().
			Model(&stats).
			Where("timestamp >= ?", since.UTC()).
			Order("timestamp ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get hourly stats: %w", err)
		}

		return stats, nil
	})
}

// HasStatsForHour checks if statistics exist for a specific hour.
func (r *StatsModel) HasStatsForHour(ctx context.Context, hour time.Time) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := r.db.NewSelect().
			Model((*types.HourlyStats)(nil)).
			Where("timestamp = ?", hour.UTC().Truncate(time.Hour)).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check stats existence for hour %v: %w", hour, err)
		}

		return exists, nil
	})
}

// PurgeOldStats removes statistics older than the cutoff date.
func (r *StatsModel) PurgeOldStats(ctx context.Context, cutoffDate time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		result, err := r.db.NewDelete().
			Model((*types.HourlyStats)(nil)).
			Where("timestamp < ?", cutoffDate).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to purge old stats: %w (cutoffDate=%s)", err, cutoffDate.Format(time.RFC3339))
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}

		r.logger.Debug("Purged old stats",
			zap.Int64("rowsAffected", rowsAffected),
			zap.Time("cutoffDate", cutoffDate))

		return rowsAffected, nil
	})
}
