package types

import (
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
)

// LeaderboardQuery selects which leaderboard to compute.
type LeaderboardQuery struct {
	Window   enum.LeaderboardWindow
	Category enum.Category
	Limit    int
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank            int          `bun:"-"                json:"rank"`
	UserID          int64        `bun:"user_id"          json:"userId"`
	Name            string       `bun:"name"             json:"name"`
	Role            enum.Role    `bun:"role"             json:"role"`
	Location        string       `bun:"location"         json:"location"`
	TotalPoints     int64        `bun:"total_points"     json:"totalPoints"`
	SubmissionCount int64        `bun:"submission_count" json:"submissionCount"`
	AverageAccuracy float64      `bun:"average_accuracy" json:"averageAccuracy"`
	Badges          []enum.Badge `bun:"-"                json:"badges"`
}

// UserBadge is a distinct badge earned by a user inside a window.
type UserBadge struct {
	UserID int64      `bun:"user_id"`
	Badge  enum.Badge `bun:"badge"`
}
