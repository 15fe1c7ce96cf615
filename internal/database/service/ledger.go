package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// LedgerService credits approved points to users.
type LedgerService struct {
	db         *bun.DB
	model      *models.LedgerModel
	submission *models.SubmissionModel
	logger     *zap.Logger
}

// NewLedger creates a new ledger service.
func NewLedger(
	db *bun.DB, model *models.LedgerModel, submission *models.SubmissionModel, logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		db:         db,
		model:      model,
		submission: submission,
		logger:     logger.Named("ledger_service"),
	}
}

// CreditPoints adds an approved submission's points to its owner's total.
// Repeated calls for the same submission leave the total unchanged and
// report Credited=false. A submission whose reward is not approved returns
// types.ErrInvalidTransition.
func (s *LedgerService) CreditPoints(
	ctx context.Context, submissionID int64, source string,
) (types.CreditResult, error) {
	var result types.CreditResult

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		sub, err := s.submission.GetForUpdate(ctx, tx, submissionID)
		if err != nil {
			return err
		}

		if sub.Rewards.Status != enum.RewardStatusApproved {
			return fmt.Errorf("%w: reward for submission %d is %s",
				types.ErrInvalidTransition, submissionID, sub.Rewards.Status)
		}

		result, err = s.model.CreditInTx(ctx, tx, &types.LedgerEntry{
			SubmissionID: sub.ID,
			UserID:       sub.UserID,
			Points:       sub.Rewards.Points,
			Source:       source,
		}, time.Now())

		return err
	})
	if err != nil {
		return types.CreditResult{}, err
	}

	return result, nil
}

// GetEntry returns the ledger entry of a submission, or nil when it was never credited.
func (s *LedgerService) GetEntry(ctx context.Context, submissionID int64) (*types.LedgerEntry, error) {
	return s.model.GetBySubmission(ctx, submissionID)
}

// Audit returns users whose total differs from the sum of their ledger entries.
func (s *LedgerService) Audit(ctx context.Context) ([]*types.LedgerMismatch, error) {
	mismatches, err := s.model.FindMismatches(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range mismatches {
		s.logger.Warn("Ledger mismatch",
			zap.Int64("userID", m.UserID),
			zap.Int64("totalPoints", m.TotalPoints),
			zap.Int64("ledgerSum", m.LedgerSum))
	}

	return mismatches, nil
}
