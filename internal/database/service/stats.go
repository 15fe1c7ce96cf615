package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"go.uber.org/zap"
)

// StatsService handles statistics-related business logic.
type StatsService struct {
	model  *models.StatsModel
	view   *ViewService
	logger *zap.Logger
}

// NewStats creates a new stats service.
func NewStats(model *models.StatsModel, view *ViewService, logger *zap.Logger) *StatsService {
	return &StatsService{
		model:  model,
		view:   view,
		logger: logger.Named("stats_service"),
	}
}

// GetSystemStats returns the dashboard counters, refreshing them first when stale.
// A failed refresh falls back to the last materialized values.
func (s *StatsService) GetSystemStats(ctx context.Context) (*types.SystemStats, error) {
	if err := s.view.RefreshSystemStatsView(ctx); err != nil {
		s.logger.Warn("Failed to refresh system stats view", zap.Error(err))
	}

	stats, err := s.model.GetSystemStats(ctx)
	if err != nil {
		return nil, err
	}

	stats.MangrovesSaved = stats.ValidatedReports * types.MangrovesPerValidatedReport

	return stats, nil
}

// SaveHourlySnapshot stores the current counters under the hour containing now.
// It returns false when a snapshot for that hour already exists.
func (s *StatsService) SaveHourlySnapshot(ctx context.Context, now time.Time) (bool, error) {
	hour := now.UTC().Truncate(time.Hour)

	exists, err := s.model.HasStatsForHour(ctx, hour)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	current, err := s.GetSystemStats(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current stats: %w", err)
	}

	err = s.model.SaveHourlyStats(ctx, &types.HourlyStats{
		Timestamp:        hour,
		TotalUsers:       current.TotalUsers,
		TotalReports:     current.TotalReports,
		ValidatedReports: current.ValidatedReports,
		TotalUploads:     current.TotalUploads,
		ApprovedUploads:  current.ApprovedUploads,
		PendingAnalyses:  current.PendingAnalyses,
		PointsCredited:   current.PointsCredited,
	})
	if err != nil {
		return false, err
	}

	s.logger.Debug("Saved hourly stats", zap.Time("hour", hour))

	return true, nil
}

// GetHourlyStats returns the snapshots of the last 24 hours.
func (s *StatsService) GetHourlyStats(ctx context.Context, now time.Time) ([]*types.HourlyStats, error) {
	return s.model.GetHourlyStats(ctx, now.Add(-24*time.Hour))
}

// PurgeOldStats removes snapshots older than the retention period.
func (s *StatsService) PurgeOldStats(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	return s.model.PurgeOldStats(ctx, now.UTC().Add(-retention))
}
