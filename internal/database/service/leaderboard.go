package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"go.uber.org/zap"
)

const (
	// DefaultLeaderboardLimit is used when a query asks for no specific size.
	DefaultLeaderboardLimit = 20
	// MaxLeaderboardLimit caps the number of leaderboard rows.
	MaxLeaderboardLimit = 100
)

// LeaderboardService ranks users by approved points.
type LeaderboardService struct {
	model  *models.LeaderboardModel
	user   *models.UserModel
	logger *zap.Logger
}

// NewLeaderboard creates a new leaderboard service.
func NewLeaderboard(model *models.LeaderboardModel, user *models.UserModel, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{
		model:  model,
		user:   user,
		logger: logger.Named("leaderboard_service"),
	}
}

// GetLeaderboard returns ranked users for the query's window and category.
// Ranks are positions in the ordering, starting at one.
func (s *LeaderboardService) GetLeaderboard(
	ctx context.Context, query types.LeaderboardQuery, now time.Time,
) ([]*types.LeaderboardEntry, error) {
	if !query.Window.IsALeaderboardWindow() {
		return nil, fmt.Errorf("%w: unknown leaderboard window %d", types.ErrValidation, query.Window)
	}
	if query.Category != "" && !query.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown category %q", types.ErrValidation, query.Category)
	}

	start := WindowStart(query.Window, now)
	limit := NormalizeLeaderboardLimit(query.Limit)

	entries, err := s.model.GetEntries(ctx, start, query.Category, limit)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, len(entries))
	for i, entry := range entries {
		entry.Rank = i + 1
		entry.Badges = []enum.Badge{}
		userIDs[i] = entry.UserID
	}

	badges, err := s.model.GetBadges(ctx, userIDs, start, query.Category)
	if err != nil {
		return nil, err
	}

	AttachBadges(entries, badges)

	return entries, nil
}

// GetUserRank returns one plus the number of users with strictly more total points.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID int64) (int64, error) {
	return s.user.GetRank(ctx, userID)
}

// WindowStart returns the earliest creation time included in a window.
// Week is the trailing seven days, month and year start at the calendar
// boundary in now's location, and all returns the zero time.
func WindowStart(window enum.LeaderboardWindow, now time.Time) time.Time {
	switch window {
	case enum.LeaderboardWindowWeek:
		return now.AddDate(0, 0, -7)
	case enum.LeaderboardWindowMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case enum.LeaderboardWindowYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case enum.LeaderboardWindowAll:
		return time.Time{}
	default:
		return time.Time{}
	}
}

// NormalizeLeaderboardLimit applies the default and maximum leaderboard sizes.
func NormalizeLeaderboardLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

// AttachBadges copies each user's badges onto their leaderboard entry.
func AttachBadges(entries []*types.LeaderboardEntry, badges []*types.UserBadge) {
	byUser := make(map[int64]*types.LeaderboardEntry, len(entries))
	for _, entry := range entries {
		byUser[entry.UserID] = entry
	}

	for _, badge := range badges {
		if entry, ok := byUser[badge.UserID]; ok {
			entry.Badges = append(entry.Badges, badge.Badge)
		}
	}
}
