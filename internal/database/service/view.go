package service

import (
	"context"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/migrations"
	"github.com/mangrovewatch/mangrove/internal/database/models"
	"go.uber.org/zap"
)

// SystemStatsStaleDuration is how old the dashboard counters may get before a refresh.
const SystemStatsStaleDuration = 5 * time.Minute

// ViewService handles materialized view business logic.
type ViewService struct {
	model  *models.MaterializedViewModel
	logger *zap.Logger
}

// NewView creates a new view service.
func NewView(model *models.MaterializedViewModel, logger *zap.Logger) *ViewService {
	return &ViewService{
		model:  model,
		logger: logger.Named("view_service"),
	}
}

// RefreshSystemStatsView refreshes the dashboard counters when they are stale.
func (s *ViewService) RefreshSystemStatsView(ctx context.Context) error {
	return s.model.RefreshIfStale(ctx, migrations.SystemStatsView, SystemStatsStaleDuration)
}

// GetSystemStatsRefreshInfo returns the last refresh time and the next scheduled refresh.
func (s *ViewService) GetSystemStatsRefreshInfo(ctx context.Context) (lastRefresh, nextRefresh time.Time, err error) {
	lastRefresh, err = s.model.GetRefreshInfo(ctx, migrations.SystemStatsView)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return lastRefresh, lastRefresh.Add(SystemStatsStaleDuration), nil
}
