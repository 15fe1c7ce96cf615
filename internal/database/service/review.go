package service

import (
	"context"
	"strings"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/lifecycle"
	"go.uber.org/zap"
)

// ReviewService handles administrator decisions on submissions.
type ReviewService struct {
	submission *SubmissionService
	activity   *models.ActivityModel
	logger     *zap.Logger
}

// NewReview creates a new review service.
func NewReview(submission *SubmissionService, activity *models.ActivityModel, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		submission: submission,
		activity:   activity,
		logger:     logger.Named("review_service"),
	}
}

// ReviewUpload approves or rejects an upload. Approval credits points at most once.
func (s *ReviewService) ReviewUpload(
	ctx context.Context, admin *types.User, id int64, approve bool, notes string, points *int,
) (*types.Submission, error) {
	return s.decide(ctx, admin, id, approve, notes, points, enum.ActivityTypeSubmissionReviewed, lifecycle.ApplyManualReview)
}

// ValidateReport marks a report valid or invalid and decides its reward the same way.
func (s *ReviewService) ValidateReport(
	ctx context.Context, admin *types.User, id int64, valid bool, notes string, points *int,
) (*types.Submission, error) {
	return s.decide(ctx, admin, id, valid, notes, points, enum.ActivityTypeReportValidated, lifecycle.ValidateReport)
}

func (s *ReviewService) decide(
	ctx context.Context,
	admin *types.User,
	id int64,
	approve bool,
	notes string,
	points *int,
	activityType enum.ActivityType,
	apply func(*types.Submission, lifecycle.Review, time.Time) (lifecycle.Result, error),
) (*types.Submission, error) {
	if !admin.IsAdmin() {
		return nil, types.ErrForbidden
	}

	notes = strings.TrimSpace(notes)
	if err := ValidateReview(notes, points); err != nil {
		return nil, err
	}

	review := lifecycle.Review{
		Approve: approve,
		Notes:   notes,
		AdminID: admin.ID,
		Points:  points,
	}

	sub, result, err := s.submission.Mutate(ctx, id, types.CreditSourceManual,
		func(sub *types.Submission) (lifecycle.Result, error) {
			return apply(sub, review, time.Now())
		})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.activity.Log(ctx, &types.ActivityLog{
			ActorID:      admin.ID,
			SubmissionID: sub.ID,
			TargetUserID: sub.UserID,
			Type:         activityType,
			Details: map[string]any{
				"approve": approve,
				"status":  sub.Status,
				"points":  sub.Rewards.Points,
			},
			CreatedAt: time.Now(),
		})
	}

	s.logger.Info("Reviewed submission",
		zap.Int64("submissionID", sub.ID),
		zap.Int64("adminID", admin.ID),
		zap.Bool("approve", approve),
		zap.Bool("changed", result.Changed),
		zap.Int("credit", result.Credit))

	return sub, nil
}

// ResolveReport closes a validated report.
func (s *ReviewService) ResolveReport(ctx context.Context, admin *types.User, id int64) (*types.Submission, error) {
	if !admin.IsAdmin() {
		return nil, types.ErrForbidden
	}

	sub, result, err := s.submission.Mutate(ctx, id, types.CreditSourceManual,
		func(sub *types.Submission) (lifecycle.Result, error) {
			return lifecycle.ResolveReport(sub, time.Now())
		})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.activity.Log(ctx, &types.ActivityLog{
			ActorID:      admin.ID,
			SubmissionID: sub.ID,
			Type:         enum.ActivityTypeReportResolved,
			CreatedAt:    time.Now(),
		})
	}

	return sub, nil
}

// PendingReports lists reports that still await validation.
func (s *ReviewService) PendingReports(
	ctx context.Context, admin *types.User, page, limit int,
) ([]*types.Submission, int, error) {
	if !admin.IsAdmin() {
		return nil, 0, types.ErrForbidden
	}

	return s.submission.List(ctx, types.SubmissionFilter{
		Kind:   enum.SubmissionKindReport,
		Status: enum.SubmissionStatusOpen,
		Page:   page,
		Limit:  limit,
	})
}
