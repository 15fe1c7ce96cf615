package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// immutableColumns are never written by UpdateInTx. Credit time is owned by the ledger.
var immutableColumns = []string{"id", "kind", "user_id", "created_at", "rewards_credited_at"}

// SubmissionModel handles database operations for reports and uploads.
type SubmissionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewSubmission creates a SubmissionModel.
func NewSubmission(db *bun.DB, logger *zap.Logger) *SubmissionModel {
	return &SubmissionModel{
		db:     db,
		logger: logger.Named("db_submission"),
	}
}

// Create inserts a new submission and fills in generated columns.
func (r *SubmissionModel) Create(ctx context.Context, s *types.Submission) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(s).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}

		r.logger.Debug("Created submission",
			zap.Int64("submissionID", s.ID),
			zap.Int64("userID", s.UserID),
			zap.String("kind", string(s.Kind)))

		return nil
	})
}

// GetByID retrieves a submission with its owner.
func (r *SubmissionModel) GetByID(ctx context.Context, id int64) (*types.Submission, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Submission, error) {
		var s types.Submission

		err := r.db.NewSelect().
			Model(&s).
			Relation("Owner").
			Where("s.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrSubmissionNotFound
			}
			return nil, fmt.Errorf("failed to get submission: %w (submissionID=%d)", err, id)
		}

		return &s, nil
	})
}

// GetForUpdate locks a submission row for the rest of the transaction.
func (r *SubmissionModel) GetForUpdate(ctx context.Context, tx bun.IDB, id int64) (*types.Submission, error) {
	var s types.Submission

	err := tx.NewSelect().
		Model(&s).
		Where("s.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to lock submission: %w (submissionID=%d)", err, id)
	}

	return &s, nil
}

// UpdateInTx writes every mutable column of a submission.
func (r *SubmissionModel) UpdateInTx(ctx context.Context, tx bun.IDB, s *types.Submission) error {
	_, err := tx.NewUpdate().
		Model(s).
		ExcludeColumn(immutableColumns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w (submissionID=%d)", err, s.ID)
	}

	return nil
}

// List returns a page of submissions and the total number matching the filter.
func (r *SubmissionModel) List(ctx context.Context, filter types.SubmissionFilter) ([]*types.Submission, int, error) {
	var submissions []*types.Submission
	var total int

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		query := r.db.NewSelect().
			Model(&submissions).
			Relation("Owner", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Column("id", "name", "role", "location")
			})

		if filter.Kind != "" {
			query = query.Where("s.kind = ?", filter.Kind)
		}
		if filter.Status != "" {
			query = query.Where("s.status = ?", filter.Status)
		}
		if filter.Category != "" {
			query = query.Where("s.category = ?", filter.Category)
		}
		if filter.UserID != 0 {
			query = query.Where("s.user_id = ?", filter.UserID)
		}

		var err error
		total, err = query.
			Order("s.created_at DESC", "s.id DESC").
			Offset((filter.Page - 1) * filter.Limit).
			Limit(filter.Limit).
			ScanAndCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to list submissions: %w", err)
		}

		return nil
	})

	return submissions, total, err
}

// DeleteInTx removes a submission. Ledger entries are kept so credited points stand.
func (r *SubmissionModel) DeleteInTx(ctx context.Context, tx bun.IDB, id int64) error {
	result, err := tx.NewDelete().
		Model((*types.Submission)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w (submissionID=%d)", err, id)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return types.ErrSubmissionNotFound
	}

	return nil
}

// GetStale returns IDs of submissions whose analysis has not finished since before the cutoff.
func (r *SubmissionModel) GetStale(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var ids []int64

		err := r.db.NewSelect().
			Model((*types.Submission)(nil)).
			Column("id").
			Where("analysis_status IN (?)", bun.In([]enum.AnalysisStatus{
				enum.AnalysisStatusPending,
				enum.AnalysisStatusAnalyzing,
			})).
			Where("updated_at < ?", cutoff).
			Order("updated_at ASC").
			Limit(limit).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get stale submissions: %w", err)
		}

		return ids, nil
	})
}

// GetUncredited returns IDs of approved submissions that never reached the ledger.
func (r *SubmissionModel) GetUncredited(ctx context.Context, limit int) ([]int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var ids []int64

		err := r.db.NewSelect().
			Model((*types.Submission)(nil)).
			Column("id").
			Where("rewards_status = ?", enum.RewardStatusApproved).
			Where("rewards_credited_at IS NULL").
			Where("rewards_points > 0").
			Order("updated_at ASC").
			Limit(limit).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get uncredited submissions: %w", err)
		}

		return ids, nil
	})
}

// GetRecentUploadsByUser returns a user's uploads created at or after since.
func (r *SubmissionModel) GetRecentUploadsByUser(
	ctx context.Context, userID int64, since time.Time,
) ([]*types.Submission, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Submission, error) {
		var submissions []*types.Submission

		err := r.db.NewSelect().
			Model(&submissions).
			Column("id", "description", "image_url", "created_at").
			Where("user_id = ?", userID).
			Where("kind = ?", enum.SubmissionKindUpload).
			Where("created_at >= ?", since).
			Order("created_at DESC").
			Limit(50).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent uploads: %w (userID=%d)", err, userID)
		}

		return submissions, nil
	})
}

// GetMapPoints returns report markers, restricted to a bounding box when one is given.
func (r *SubmissionModel) GetMapPoints(ctx context.Context, box *types.BoundingBox) ([]*types.MapPoint, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MapPoint, error) {
		var points []*types.MapPoint

		query := r.db.NewSelect().
			Model((*types.Submission)(nil)).
			Column("id", "latitude", "longitude", "incident_type", "status", "created_at").
			Where("kind = ?", enum.SubmissionKindReport).
			Where("latitude IS NOT NULL AND longitude IS NOT NULL")

		if box != nil {
			query = query.
				Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
				Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
		}

		err := query.
			Order("created_at DESC").
			Limit(5000).
			Scan(ctx, &points)
		if err != nil {
			return nil, fmt.Errorf("failed to get map points: %w", err)
		}

		return points, nil
	})
}

// GetApprovedAfter returns approved submissions with an ID above cursor, for exports.
func (r *SubmissionModel) GetApprovedAfter(ctx context.Context, cursor int64, limit int) ([]*types.Submission, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Submission, error) {
		var submissions []*types.Submission

		err := r.db.NewSelect().
			Model(&submissions).
			Where("rewards_status = ?", enum.RewardStatusApproved).
			Where("id > ?", cursor).
			Order("id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get approved submissions: %w", err)
		}

		return submissions, nil
	})
}
