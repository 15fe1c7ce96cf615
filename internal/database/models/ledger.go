package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// LedgerModel records point credits. A submission has at most one ledger entry.
type LedgerModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewLedger creates a LedgerModel.
func NewLedger(db *bun.DB, logger *zap.Logger) *LedgerModel {
	return &LedgerModel{
		db:     db,
		logger: logger.Named("db_ledger"),
	}
}

// CreditInTx adds the entry's points to the owner's total unless the submission
// was credited before. It must run inside the transaction that holds the
// submission row lock.
func (r *LedgerModel) CreditInTx(
	ctx context.Context, tx bun.IDB, entry *types.LedgerEntry, now time.Time,
) (types.CreditResult, error) {
	entry.CreatedAt = now

	result, err := tx.NewInsert().
		Model(entry).
		On("CONFLICT (submission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return types.CreditResult{}, fmt.Errorf("failed to insert ledger entry: %w (submissionID=%d)",
			err, entry.SubmissionID)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return types.CreditResult{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	var total int64
	credited := inserted > 0

	if credited {
		_, err = tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("total_points = total_points + ?", entry.Points).
			Set("updated_at = ?", now).
			Where("id = ?", entry.UserID).
			Returning("total_points").
			Exec(ctx, &total)
		if err != nil {
			return types.CreditResult{}, fmt.Errorf("failed to increment user points: %w (userID=%d)",
				err, entry.UserID)
		}
	} else {
		err = tx.NewSelect().
			Model((*types.User)(nil)).
			Column("total_points").
			Where("id = ?", entry.UserID).
			Scan(ctx, &total)
		if err != nil {
			return types.CreditResult{}, fmt.Errorf("failed to get user points: %w (userID=%d)",
				err, entry.UserID)
		}

		r.logger.Warn("Refused double credit",
			zap.Int64("submissionID", entry.SubmissionID),
			zap.Int64("userID", entry.UserID),
			zap.Int("points", entry.Points),
			zap.String("source", entry.Source))
	}

	// Also repairs a row whose credit time was lost
	_, err = tx.NewUpdate().
		Model((*types.Submission)(nil)).
		Set("rewards_credited_at = COALESCE(rewards_credited_at, ?)", now).
		Where("id = ?", entry.SubmissionID).
		Exec(ctx)
	if err != nil {
		return types.CreditResult{}, fmt.Errorf("failed to mark submission credited: %w (submissionID=%d)",
			err, entry.SubmissionID)
	}

	if credited {
		r.logger.Debug("Credited points",
			zap.Int64("submissionID", entry.SubmissionID),
			zap.Int64("userID", entry.UserID),
			zap.Int("points", entry.Points),
			zap.Int64("totalPoints", total),
			zap.String("source", entry.Source))
	}

	return types.CreditResult{Credited: credited, TotalPoints: total}, nil
}

// GetBySubmission returns the ledger entry of a submission, or nil when it was never credited.
func (r *LedgerModel) GetBySubmission(ctx context.Context, submissionID int64) (*types.LedgerEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.LedgerEntry, error) {
		var entries []*types.LedgerEntry

		err := r.db.NewSelect().
			Model(&entries).
			Where("submission_id = ?", submissionID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get ledger entry: %w (submissionID=%d)", err, submissionID)
		}

		if len(entries) == 0 {
			return nil, nil //nolint:nilnil // no entry is not an error
		}

		return entries[0], nil
	})
}

// FindMismatches returns users whose total differs from the sum of their ledger entries.
func (r *LedgerModel) FindMismatches(ctx context.Context) ([]*types.LedgerMismatch, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.LedgerMismatch, error) {
		var mismatches []*types.LedgerMismatch

		err := r.db.NewSelect().
			TableExpr("users AS u").
			ColumnExpr("u.id AS user_id, u.email, u.total_points").
			ColumnExpr("COALESCE(SUM(le.points), 0) AS ledger_sum").
			Join("LEFT JOIN ledger_entries AS le ON le.user_id = u.id").
			GroupExpr("u.id").
			Having("u.total_points <> COALESCE(SUM(le.points), 0)").
			OrderExpr("u.id ASC").
			Scan(ctx, &mismatches)
		if err != nil {
			return nil, fmt.Errorf("failed to find ledger mismatches: %w", err)
		}

		return mismatches, nil
	})
}

// TotalCredited returns the sum of all credited points.
func (r *LedgerModel) TotalCredited(ctx context.Context) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var total int64

		err := r.db.NewSelect().
			Model((*types.LedgerEntry)(nil)).
			ColumnExpr("COALESCE(SUM(points), 0)").
			Scan(ctx, &total)
		if err != nil {
			return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
		}

		return total, nil
	})
}
