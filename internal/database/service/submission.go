package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/lifecycle"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	// DuplicateWindow is how far back intake looks for duplicate uploads.
	DuplicateWindow = 24 * time.Hour
	// DuplicateSimilarity is the description similarity at which an upload is flagged as a duplicate.
	DuplicateSimilarity = 0.9
)

// JobQueue accepts analysis jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, item *queue.Item) error
}

// MutateFunc changes a locked submission and reports the effect.
type MutateFunc = func(s *types.Submission) (lifecycle.Result, error)

// afterMutateFunc runs inside the mutation transaction once the submission is written.
type afterMutateFunc func(ctx context.Context, tx bun.Tx, s *types.Submission) error

// SubmissionService handles report and upload business logic.
type SubmissionService struct {
	db       *bun.DB
	model    *models.SubmissionModel
	ledger   *models.LedgerModel
	flag     *models.FlagModel
	activity *models.ActivityModel
	queue    JobQueue
	logger   *zap.Logger
}

// NewSubmission creates a new submission service. The queue may be nil for
// read-only callers, in which case analysis requests fail.
func NewSubmission(
	db *bun.DB,
	model *models.SubmissionModel,
	ledger *models.LedgerModel,
	flag *models.FlagModel,
	activity *models.ActivityModel,
	jobs JobQueue,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		db:       db,
		model:    model,
		ledger:   ledger,
		flag:     flag,
		activity: activity,
		queue:    jobs,
		logger:   logger.Named("submission_service"),
	}
}

// SetQueue attaches the job queue used for analysis requests.
func (s *SubmissionService) SetQueue(jobs JobQueue) {
	s.queue = jobs
}

// CreateReport validates and stores an incident report, then queues its analysis.
func (s *SubmissionService) CreateReport(
	ctx context.Context, user *types.User, in *types.NewReport,
) (*types.Submission, error) {
	if !user.CanSubmit() {
		return nil, types.ErrUserBanned
	}
	if err := ValidateReport(in); err != nil {
		return nil, err
	}

	now := time.Now()
	sub := newSubmission(enum.SubmissionKindReport, user.ID, now)
	sub.Description = in.Description
	sub.ImageURL = in.PhotoURL
	sub.IncidentType = in.IncidentType
	sub.Category = in.IncidentType.Category()
	sub.Latitude = in.Latitude
	sub.Longitude = in.Longitude

	if err := s.create(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// CreateUpload validates and stores a photo upload, then queues its analysis.
// An upload resembling one of the owner's uploads from the last day is flagged
// as a duplicate but still accepted.
func (s *SubmissionService) CreateUpload(
	ctx context.Context, user *types.User, in *types.NewUpload,
) (*types.Submission, error) {
	if !user.CanSubmit() {
		return nil, types.ErrUserBanned
	}
	if err := ValidateUpload(in); err != nil {
		return nil, err
	}

	now := time.Now()
	sub := newSubmission(enum.SubmissionKindUpload, user.ID, now)
	sub.Title = in.Title
	sub.Description = in.Description
	sub.ImageURL = in.ImageURL
	sub.Category = in.Category
	sub.Tags = in.Tags
	sub.Latitude = in.Latitude
	sub.Longitude = in.Longitude

	duplicateOf := s.findDuplicate(ctx, sub, now)

	if err := s.create(ctx, sub); err != nil {
		return nil, err
	}

	if duplicateOf != 0 {
		flag := &types.SubmissionFlag{
			SubmissionID: sub.ID,
			Reason:       enum.FlagReasonDuplicate,
			Notes:        fmt.Sprintf("similar to submission %d", duplicateOf),
			CreatedAt:    now,
		}
		if err := s.flag.Create(ctx, s.db, flag); err != nil {
			s.logger.Error("Failed to record duplicate flag",
				zap.Error(err),
				zap.Int64("submissionID", sub.ID))
		} else {
			s.activity.Log(ctx, &types.ActivityLog{
				SubmissionID: sub.ID,
				Type:         enum.ActivityTypeSubmissionFlagged,
				Details:      map[string]any{"reason": flag.Reason, "duplicateOf": duplicateOf},
				CreatedAt:    now,
			})
		}
	}

	return sub, nil
}

// findDuplicate returns the ID of a recent upload by the same owner with the same
// image or a near-identical description, or zero.
func (s *SubmissionService) findDuplicate(ctx context.Context, sub *types.Submission, now time.Time) int64 {
	recent, err := s.model.GetRecentUploadsByUser(ctx, sub.UserID, now.Add(-DuplicateWindow))
	if err != nil {
		s.logger.Warn("Skipping duplicate check", zap.Error(err), zap.Int64("userID", sub.UserID))
		return 0
	}

	normalizer := utils.NewTextNormalizer()
	for _, prev := range recent {
		if prev.ImageURL == sub.ImageURL ||
			normalizer.Similarity(prev.Description, sub.Description) >= DuplicateSimilarity {
			return prev.ID
		}
	}

	return 0
}

func (s *SubmissionService) create(ctx context.Context, sub *types.Submission) error {
	if err := s.model.Create(ctx, sub); err != nil {
		return err
	}

	s.activity.Log(ctx, &types.ActivityLog{
		ActorID:      sub.UserID,
		SubmissionID: sub.ID,
		Type:         enum.ActivityTypeSubmissionCreated,
		Details:      map[string]any{"kind": sub.Kind, "category": sub.Category},
		CreatedAt:    sub.CreatedAt,
	})

	// The recovery worker picks up submissions whose job never reached the queue
	if err := s.SubmitForAnalysis(ctx, sub.ID, queue.NormalPriority, "intake", sub.UserID); err != nil {
		s.logger.Error("Failed to queue analysis",
			zap.Error(err),
			zap.Int64("submissionID", sub.ID))
	}

	return nil
}

// SubmitForAnalysis queues an analysis job for a submission. A submission that
// is already queued or being processed is not queued twice.
func (s *SubmissionService) SubmitForAnalysis(
	ctx context.Context, submissionID int64, priority, reason string, requestedBy int64,
) error {
	if s.queue == nil {
		return fmt.Errorf("failed to queue submission %d: no job queue configured", submissionID)
	}

	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		err := s.queue.Enqueue(ctx, &queue.Item{
			SubmissionID: submissionID,
			Priority:     priority,
			Reason:       reason,
			RequestedBy:  requestedBy,
		})
		if errors.Is(err, queue.ErrAlreadyQueued) || errors.Is(err, queue.ErrInvalidPriority) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, utils.GetQueueRetryOptions())
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			s.logger.Debug("Submission already queued", zap.Int64("submissionID", submissionID))
			return nil
		}
		return fmt.Errorf("failed to queue submission %d: %w", submissionID, err)
	}

	s.logger.Debug("Queued analysis",
		zap.Int64("submissionID", submissionID),
		zap.String("priority", priority),
		zap.String("reason", reason))

	return nil
}

// Get retrieves a submission with its owner.
func (s *SubmissionService) Get(ctx context.Context, id int64) (*types.Submission, error) {
	return s.model.GetByID(ctx, id)
}

// GetOfKind retrieves a submission and treats one of another kind as missing.
func (s *SubmissionService) GetOfKind(
	ctx context.Context, id int64, kind enum.SubmissionKind,
) (*types.Submission, error) {
	sub, err := s.model.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Kind != kind {
		return nil, types.ErrSubmissionNotFound
	}
	return sub, nil
}

// GetAnalysis returns an upload for its AI analysis view. Only the owner and
// administrators may see it.
func (s *SubmissionService) GetAnalysis(ctx context.Context, user *types.User, id int64) (*types.Submission, error) {
	sub, err := s.GetOfKind(ctx, id, enum.SubmissionKindUpload)
	if err != nil {
		return nil, err
	}
	if sub.UserID != user.ID && !user.IsAdmin() {
		return nil, types.ErrForbidden
	}
	return sub, nil
}

// List returns a page of submissions and the total matching the filter.
func (s *SubmissionService) List(
	ctx context.Context, filter types.SubmissionFilter,
) ([]*types.Submission, int, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	return s.model.List(ctx, filter)
}

// Mutate locks a submission, applies fn and writes the result in one transaction.
// Points reported by fn are credited through the ledger in the same transaction.
func (s *SubmissionService) Mutate(
	ctx context.Context, id int64, source string, fn MutateFunc,
) (*types.Submission, lifecycle.Result, error) {
	return s.mutate(ctx, id, source, fn, nil)
}

func (s *SubmissionService) mutate(
	ctx context.Context, id int64, source string, fn MutateFunc, after afterMutateFunc,
) (*types.Submission, lifecycle.Result, error) {
	var (
		sub    *types.Submission
		result lifecycle.Result
		credit types.CreditResult
	)

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var err error

		credit = types.CreditResult{}

		sub, err = s.model.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		result, err = fn(sub)
		if err != nil {
			return err
		}

		now := time.Now()

		if result.Changed {
			sub.UpdatedAt = now
			if err := s.model.UpdateInTx(ctx, tx, sub); err != nil {
				return err
			}
		}

		if result.Credit > 0 {
			credit, err = s.ledger.CreditInTx(ctx, tx, &types.LedgerEntry{
				SubmissionID: sub.ID,
				UserID:       sub.UserID,
				Points:       result.Credit,
				Source:       source,
			}, now)
			if err != nil {
				return err
			}
			if !sub.IsCredited() {
				sub.Rewards.CreditedAt = now
			}
		}

		if after != nil {
			return after(ctx, tx, sub)
		}

		return nil
	})
	if err != nil {
		return nil, lifecycle.Result{}, err
	}

	if credit.Credited {
		s.activity.Log(ctx, &types.ActivityLog{
			SubmissionID: sub.ID,
			TargetUserID: sub.UserID,
			Type:         enum.ActivityTypePointsCredited,
			Details: map[string]any{
				"points":      result.Credit,
				"source":      source,
				"totalPoints": credit.TotalPoints,
			},
			CreatedAt: time.Now(),
		})
	}

	return sub, result, nil
}

// Update applies an owner's edit. A changed photo queues a new analysis.
func (s *SubmissionService) Update(
	ctx context.Context, user *types.User, id int64, kind enum.SubmissionKind, edit *types.SubmissionEdit,
) (*types.Submission, error) {
	if !user.CanSubmit() {
		return nil, types.ErrUserBanned
	}
	if err := ValidateEdit(kind, edit); err != nil {
		return nil, err
	}

	var photoChanged bool

	sub, _, err := s.Mutate(ctx, id, types.CreditSourceManual, func(sub *types.Submission) (lifecycle.Result, error) {
		if sub.Kind != kind {
			return lifecycle.Result{}, types.ErrSubmissionNotFound
		}

		var err error
		photoChanged, err = lifecycle.EditContent(sub, user.ID, edit, time.Now())
		if err != nil {
			return lifecycle.Result{}, err
		}

		return lifecycle.Result{Changed: true}, nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, &types.ActivityLog{
		ActorID:      user.ID,
		SubmissionID: sub.ID,
		Type:         enum.ActivityTypeSubmissionUpdated,
		Details:      map[string]any{"photoChanged": photoChanged},
		CreatedAt:    time.Now(),
	})

	if photoChanged {
		if err := s.SubmitForAnalysis(ctx, sub.ID, queue.NormalPriority, "photo_changed", user.ID); err != nil {
			s.logger.Error("Failed to queue analysis after edit",
				zap.Error(err),
				zap.Int64("submissionID", sub.ID))
		}
	}

	return sub, nil
}

// Delete removes an owner's submission while it is still in its initial state.
func (s *SubmissionService) Delete(ctx context.Context, user *types.User, id int64, kind enum.SubmissionKind) error {
	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		sub, err := s.model.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.Kind != kind {
			return types.ErrSubmissionNotFound
		}
		if err := lifecycle.CheckOwnerEditable(sub, user.ID); err != nil {
			return err
		}

		return s.model.DeleteInTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.activity.Log(ctx, &types.ActivityLog{
		ActorID:   user.ID,
		Type:      enum.ActivityTypeSubmissionDeleted,
		Details:   map[string]any{"submissionId": id, "kind": kind},
		CreatedAt: time.Now(),
	})

	return nil
}

// Flag records a community flag on another user's upload and moves it to flagged.
func (s *SubmissionService) Flag(
	ctx context.Context, user *types.User, id int64, reason enum.FlagReason, notes string,
) (*types.Submission, error) {
	if !user.CanSubmit() {
		return nil, types.ErrUserBanned
	}
	if err := ValidateFlag(reason, notes); err != nil {
		return nil, err
	}

	now := time.Now()

	sub, _, err := s.mutate(ctx, id, types.CreditSourceManual,
		func(sub *types.Submission) (lifecycle.Result, error) {
			if sub.Kind != enum.SubmissionKindUpload {
				return lifecycle.Result{}, types.ErrSubmissionNotFound
			}
			if sub.UserID == user.ID {
				return lifecycle.Result{}, fmt.Errorf("%w: users cannot flag their own uploads", types.ErrForbidden)
			}
			return lifecycle.Flag(sub, now)
		},
		func(ctx context.Context, tx bun.Tx, sub *types.Submission) error {
			return s.flag.Create(ctx, tx, &types.SubmissionFlag{
				SubmissionID: sub.ID,
				FlaggedBy:    user.ID,
				Reason:       reason,
				Notes:        notes,
				CreatedAt:    now,
			})
		})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, &types.ActivityLog{
		ActorID:      user.ID,
		SubmissionID: sub.ID,
		Type:         enum.ActivityTypeSubmissionFlagged,
		Details:      map[string]any{"reason": reason},
		CreatedAt:    now,
	})

	return sub, nil
}

// Reanalyze resets a finished analysis and queues it at high priority.
func (s *SubmissionService) Reanalyze(ctx context.Context, admin *types.User, id int64) (*types.Submission, error) {
	if !admin.IsAdmin() {
		return nil, types.ErrForbidden
	}

	sub, _, err := s.Mutate(ctx, id, types.CreditSourceManual, func(sub *types.Submission) (lifecycle.Result, error) {
		return lifecycle.ResetForReanalysis(sub, time.Now())
	})
	if err != nil {
		return nil, err
	}

	if err := s.SubmitForAnalysis(ctx, sub.ID, queue.HighPriority, "reanalysis", admin.ID); err != nil {
		return nil, err
	}

	s.activity.Log(ctx, &types.ActivityLog{
		ActorID:      admin.ID,
		SubmissionID: sub.ID,
		Type:         enum.ActivityTypeReanalysisRequested,
		CreatedAt:    time.Now(),
	})

	return sub, nil
}

// GetMapPoints returns report markers, optionally inside a bounding box.
func (s *SubmissionService) GetMapPoints(ctx context.Context, box *types.BoundingBox) ([]*types.MapPoint, error) {
	if box != nil && (box.MinLat > box.MaxLat || box.MinLng > box.MaxLng) {
		return nil, fmt.Errorf("%w: bounding box minimum exceeds maximum", types.ErrValidation)
	}
	return s.model.GetMapPoints(ctx, box)
}

// GetStale returns IDs of submissions whose analysis has not finished within staleAfter.
func (s *SubmissionService) GetStale(ctx context.Context, staleAfter time.Duration, limit int) ([]int64, error) {
	return s.model.GetStale(ctx, time.Now().Add(-staleAfter), limit)
}

// GetUncredited returns IDs of approved submissions that were never credited.
func (s *SubmissionService) GetUncredited(ctx context.Context, limit int) ([]int64, error) {
	return s.model.GetUncredited(ctx, limit)
}

// GetApprovedAfter pages through approved submissions by ID.
func (s *SubmissionService) GetApprovedAfter(
	ctx context.Context, cursor int64, limit int,
) ([]*types.Submission, error) {
	return s.model.GetApprovedAfter(ctx, cursor, limit)
}

func newSubmission(kind enum.SubmissionKind, userID int64, now time.Time) *types.Submission {
	return &types.Submission{
		Kind:     kind,
		UserID:   userID,
		Status:   enum.InitialStatus(kind),
		Analysis: types.Analysis{Status: enum.AnalysisStatusPending},
		Rewards: types.Rewards{
			Status: enum.RewardStatusPending,
			Badges: []enum.Badge{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
