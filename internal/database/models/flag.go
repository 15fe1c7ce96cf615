package models

import (
	"context"
	"fmt"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// FlagModel handles database operations for submission flags.
type FlagModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewFlag creates a FlagModel.
func NewFlag(db *bun.DB, logger *zap.Logger) *FlagModel {
	return &FlagModel{
		db:     db,
		logger: logger.Named("db_flag"),
	}
}

// Create stores a flag using the given connection or transaction.
func (r *FlagModel) Create(ctx context.Context, db bun.IDB, flag *types.SubmissionFlag) error {
	_, err := db.NewInsert().
		Model(flag).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create flag: %w (submissionID=%d)", err, flag.SubmissionID)
	}

	r.logger.Debug("Flagged submission",
		zap.Int64("submissionID", flag.SubmissionID),
		zap.Int64("flaggedBy", flag.FlaggedBy),
		zap.String("reason", string(flag.Reason)))

	return nil
}

// GetBySubmission returns all flags raised on a submission, newest first.
func (r *FlagModel) GetBySubmission(ctx context.Context, submissionID int64) ([]*types.SubmissionFlag, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.SubmissionFlag, error) {
		var flags []*types.SubmissionFlag

		err := r.db.NewSelect().
			Model(&flags).
			Where("submission_id = ?", submissionID).
			Order("created_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get flags: %w (submissionID=%d)", err, submissionID)
		}

		return flags, nil
	})
}
