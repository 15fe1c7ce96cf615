package database

import (
	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	user        *models.UserModel
	submission  *models.SubmissionModel
	ledger      *models.LedgerModel
	leaderboard *models.LeaderboardModel
	flag        *models.FlagModel
	activity    *models.ActivityModel
	stats       *models.StatsModel
	view        *models.MaterializedViewModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		user:        models.NewUser(db, logger),
		submission:  models.NewSubmission(db, logger),
		ledger:      models.NewLedger(db, logger),
		leaderboard: models.NewLeaderboard(db, logger),
		flag:        models.NewFlag(db, logger),
		activity:    models.NewActivity(db, logger),
		stats:       models.NewStats(db, logger),
		view:        models.NewMaterializedView(db, logger),
	}
}

// User returns the user model repository.
func (r *Repository) User() *models.UserModel {
	return r.user
}

// Submission returns the submission model repository.
func (r *Repository) Submission() *models.SubmissionModel {
	return r.submission
}

// Ledger returns the ledger model repository.
func (r *Repository) Ledger() *models.LedgerModel {
	return r.ledger
}

// Leaderboard returns the leaderboard model repository.
func (r *Repository) Leaderboard() *models.LeaderboardModel {
	return r.leaderboard
}

// Flag returns the flag model repository.
func (r *Repository) Flag() *models.FlagModel {
	return r.flag
}

// Activity returns the activity model repository.
func (r *Repository) Activity() *models.ActivityModel {
	return r.activity
}

// Stats returns the stats model repository.
func (r *Repository) Stats() *models.StatsModel {
	return r.stats
}

// View returns the materialized view model repository.
func (r *Repository) View() *models.MaterializedViewModel {
	return r.view
}
