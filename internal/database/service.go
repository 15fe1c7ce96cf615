package database

import (
	"github.com/mangrovewatch/mangrove/internal/database/service"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	user        *service.UserService
	submission  *service.SubmissionService
	review      *service.ReviewService
	ledger      *service.LedgerService
	leaderboard *service.LeaderboardService
	stats       *service.StatsService
	view        *service.ViewService
}

// NewService creates a new service instance with all services.
// Analysis requests fail until a queue is attached with Submission().SetQueue.
func NewService(db *bun.DB, repository *Repository, phoneRegion string, logger *zap.Logger) *Service {
	submissionModel := repository.Submission()
	ledgerModel := repository.Ledger()
	activityModel := repository.Activity()
	userModel := repository.User()

	viewService := service.NewView(repository.View(), logger)
	submissionService := service.NewSubmission(
		db, submissionModel, ledgerModel, repository.Flag(), activityModel, nil, logger,
	)

	return &Service{
		user:        service.NewUser(userModel, activityModel, phoneRegion, logger),
		submission:  submissionService,
		review:      service.NewReview(submissionService, activityModel, logger),
		ledger:      service.NewLedger(db, ledgerModel, submissionModel, logger),
		leaderboard: service.NewLeaderboard(repository.Leaderboard(), userModel, logger),
		stats:       service.NewStats(repository.Stats(), viewService, logger),
		view:        viewService,
	}
}

// User returns the user service.
func (s *Service) User() *service.UserService {
	return s.user
}

// Submission returns the submission service.
func (s *Service) Submission() *service.SubmissionService {
	return s.submission
}

// Review returns the review service.
func (s *Service) Review() *service.ReviewService {
	return s.review
}

// Ledger returns the ledger service.
func (s *Service) Ledger() *service.LedgerService {
	return s.ledger
}

// Leaderboard returns the leaderboard service.
func (s *Service) Leaderboard() *service.LeaderboardService {
	return s.leaderboard
}

// Stats returns the stats service.
func (s *Service) Stats() *service.StatsService {
	return s.stats
}

// View returns the view service.
func (s *Service) View() *service.ViewService {
	return s.view
}
