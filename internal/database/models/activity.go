package models

import (
	"context"
	"fmt"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ActivityModel handles database operations for the audit log.
type ActivityModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewActivity creates a repository with database access for
// storing and retrieving audit log entries.
func NewActivity(db *bun.DB, logger *zap.Logger) *ActivityModel {
	return &ActivityModel{
		db:     db,
		logger: logger.Named("db_activity"),
	}
}

// Log stores an activity entry. Failures are logged and never returned.
func (r *ActivityModel) Log(ctx context.Context, log *types.ActivityLog) {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(log).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to log activity: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to log activity",
			zap.Error(err),
			zap.Int64("actorID", log.ActorID),
			zap.Int64("submissionID", log.SubmissionID),
			zap.Int64("targetUserID", log.TargetUserID),
			zap.String("activityType", string(log.Type)))
		return
	}

	r.logger.Debug("Logged activity",
		zap.Int64("actorID", log.ActorID),
		zap.Int64("submissionID", log.SubmissionID),
		zap.String("activityType", string(log.Type)))
}

// GetBySubmission returns the most recent entries for a submission.
func (r *ActivityModel) GetBySubmission(
	ctx context.Context, submissionID int64, limit int,
) ([]*types.ActivityLog, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ActivityLog, error) {
		var logs []*types.ActivityLog

		err := r.db.NewSelect().
			Model(&logs).
			Where("submission_id = ?", submissionID).
			Order("created_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get activity logs: %w (submissionID=%d)", err, submissionID)
		}

		return logs, nil
	})
}
