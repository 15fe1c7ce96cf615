package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// LeaderboardModel aggregates approved submission points per user.
type LeaderboardModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewLeaderboard creates a LeaderboardModel.
func NewLeaderboard(db *bun.DB, logger *zap.Logger) *LeaderboardModel {
	return &LeaderboardModel{
		db:     db,
		logger: logger.Named("db_leaderboard"),
	}
}

// GetEntries returns the top users by approved points for submissions created at
// or after start. A zero start covers all time and an empty category covers all
// categories. Ties go to the older account, then the lower user ID.
func (r *LeaderboardModel) GetEntries(
	ctx context.Context, start time.Time, category enum.Category, limit int,
) ([]*types.LeaderboardEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.LeaderboardEntry, error) {
		var entries []*types.LeaderboardEntry

		query := r.db.NewSelect().
			TableExpr("submissions AS s").
			Join("JOIN users AS u ON u.id = s.user_id").
			ColumnExpr("u.id AS user_id, u.name, u.role, u.location").
			ColumnExpr("SUM(s.rewards_points) AS total_points").
			ColumnExpr("COUNT(*) AS submission_count").
			ColumnExpr("COALESCE(AVG(s.analysis_accuracy), 0) AS average_accuracy")
		query = applyLeaderboardFilters(query, start, category)

		err := query.
			GroupExpr("u.id").
			OrderExpr("total_points DESC, u.created_at ASC, u.id ASC").
			Limit(limit).
			Scan(ctx, &entries)
		if err != nil {
			return nil, fmt.Errorf("failed to get leaderboard: %w", err)
		}

		return entries, nil
	})
}

// GetBadges returns the distinct badges each user earned under the same filters.
func (r *LeaderboardModel) GetBadges(
	ctx context.Context, userIDs []int64, start time.Time, category enum.Category,
) ([]*types.UserBadge, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.UserBadge, error) {
		var badges []*types.UserBadge

		query := r.db.NewSelect().
			TableExpr("submissions AS s").
			Join("CROSS JOIN LATERAL unnest(s.rewards_badges) AS b(badge)").
			ColumnExpr("DISTINCT s.user_id, b.badge").
			Where("s.user_id IN (?)", bun.In(userIDs))
		query = applyLeaderboardFilters(query, start, category)

		err := query.
			OrderExpr("s.user_id ASC, b.badge ASC").
			Scan(ctx, &badges)
		if err != nil {
			return nil, fmt.Errorf("failed to get leaderboard badges: %w", err)
		}

		return badges, nil
	})
}

func applyLeaderboardFilters(query *bun.SelectQuery, start time.Time, category enum.Category) *bun.SelectQuery {
	query = query.Where("s.rewards_status = ?", enum.RewardStatusApproved)

	if !start.IsZero() {
		query = query.Where("s.created_at >= ?", start)
	}
	if category != "" {
		query = query.Where("s.category = ?", category)
	}

	return query
}
