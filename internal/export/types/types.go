package types

import "time"

// LeaderboardRecord is one row of the exported all-time leaderboard.
type LeaderboardRecord struct {
	Rank            int
	UserHash        string
	Name            string
	Role            string
	Location        string
	TotalPoints     int64
	SubmissionCount int64
	AverageAccuracy float64
}

// SubmissionRecord is one approved submission in the export.
type SubmissionRecord struct {
	ID           int64
	UserHash     string
	Kind         string
	Category     string
	IncidentType string
	Title        string
	Description  string
	Latitude     *float64
	Longitude    *float64
	Points       int
	Accuracy     int
	ApprovedAt   time.Time
}
