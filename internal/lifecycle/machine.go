package lifecycle

import (
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/scoring"
)

// Result describes the effect of a lifecycle operation.
type Result struct {
	// Changed is false when the operation was a no-op, e.g. a repeated approval.
	Changed bool
	// Credit is the number of points the caller should pass to the ledger.
	// The ledger itself guarantees a submission is credited at most once.
	Credit int
}

// Review is an administrator's decision on a submission's reward.
type Review struct {
	Approve bool
	Notes   string
	AdminID int64
	// Points overrides the score when set and the submission was never credited.
	Points *int
}

// BeginAnalysis moves the analysis into analyzing and counts the attempt.
func BeginAnalysis(s *types.Submission, now time.Time) error {
	if err := transitionAnalysis(s, enum.AnalysisStatusAnalyzing); err != nil {
		return err
	}

	s.Analysis.Attempts++
	s.Analysis.StartedAt = now
	s.UpdatedAt = now

	return nil
}

// FinishAnalysis records an adapter result, dispatching on its status.
func FinishAnalysis(s *types.Submission, result types.Analysis, engine *scoring.Engine, now time.Time) (Result, error) {
	if result.Status == enum.AnalysisStatusCompleted {
		return CompleteAnalysis(s, result, engine, now)
	}
	return FailAnalysis(s, result, now)
}

// CompleteAnalysis stores a completed analysis and applies the automatic reward.
func CompleteAnalysis(s *types.Submission, result types.Analysis, engine *scoring.Engine, now time.Time) (Result, error) {
	if result.Status != enum.AnalysisStatusCompleted {
		return Result{}, fmt.Errorf("%w: analysis result is %s", types.ErrInvalidTransition, result.Status)
	}

	if err := transitionAnalysis(s, enum.AnalysisStatusCompleted); err != nil {
		return Result{}, err
	}

	storeAnalysis(s, result, now)

	outcome := ApplyAutomaticReward(s, engine, now)
	outcome.Changed = true

	return outcome, nil
}

// FailAnalysis stores a failed analysis. Undecided automatic rewards are rejected,
// and a pending upload is rejected with them. Credited points are never touched.
func FailAnalysis(s *types.Submission, result types.Analysis, now time.Time) (Result, error) {
	if err := transitionAnalysis(s, enum.AnalysisStatusFailed); err != nil {
		return Result{}, err
	}

	result.Status = enum.AnalysisStatusFailed
	storeAnalysis(s, result, now)

	if !s.Rewards.Manual && !s.IsCredited() {
		s.Rewards.Points = 0
		s.Rewards.Badges = []enum.Badge{}
		s.Rewards.Status = enum.RewardStatusRejected
		s.Rewards.ApprovedAt = time.Time{}

		if s.Kind == enum.SubmissionKindUpload && s.Status == enum.SubmissionStatusPending {
			s.Status = enum.SubmissionStatusRejected
		}
	}

	return Result{Changed: true}, nil
}

// ApplyAutomaticReward applies the scoring decision to an undecided reward.
// Rewards already decided keep their status and points; only badges are recomputed.
func ApplyAutomaticReward(s *types.Submission, engine *scoring.Engine, now time.Time) Result {
	if s.Rewards.Manual || s.Rewards.Status != enum.RewardStatusPending {
		if s.Rewards.Status == enum.RewardStatusApproved && s.Rewards.Points == 0 && !s.IsCredited() {
			s.Rewards.Points = scoring.ComputePoints(&s.Analysis, s.Category)
		}

		s.Rewards.Badges = scoring.AssignBadges(s.Rewards.Points, &s.Analysis, s.Category)
		s.UpdatedAt = now

		if s.Rewards.Status == enum.RewardStatusApproved && !s.IsCredited() {
			return Result{Changed: true, Credit: s.Rewards.Points}
		}
		return Result{Changed: true}
	}

	// Flagged uploads wait for an administrator.
	if s.Kind == enum.SubmissionKindUpload && s.Status == enum.SubmissionStatusFlagged {
		s.Rewards.Badges = scoring.AssignBadges(s.Rewards.Points, &s.Analysis, s.Category)
		return Result{}
	}

	outcome := engine.Score(&s.Analysis, s.Category)
	s.Rewards.Points = outcome.Points
	s.Rewards.Badges = outcome.Badges
	s.Rewards.Status = outcome.Status
	s.UpdatedAt = now

	if s.Kind == enum.SubmissionKindUpload && s.Status == enum.SubmissionStatusPending {
		if outcome.Status == enum.RewardStatusApproved {
			s.Status = enum.SubmissionStatusApproved
		} else {
			s.Status = enum.SubmissionStatusRejected
		}
	}

	if outcome.Status != enum.RewardStatusApproved {
		return Result{Changed: true}
	}

	s.Rewards.ApprovedAt = now
	return Result{Changed: true, Credit: outcome.Points}
}

// ApplyManualReview applies an administrator's approve or reject decision to an upload.
// Manual decisions override automatic ones and repeating one is a no-op.
func ApplyManualReview(s *types.Submission, review Review, now time.Time) (Result, error) {
	if err := requireKind(s, enum.SubmissionKindUpload); err != nil {
		return Result{}, err
	}

	target := enum.SubmissionStatusRejected
	if review.Approve {
		target = enum.SubmissionStatusApproved
	}

	if s.Rewards.Manual && s.Status == target {
		if review.Approve && !s.IsCredited() {
			return Result{Credit: s.Rewards.Points}, nil
		}
		return Result{}, nil
	}

	if s.Status != target {
		if err := transition(s, target); err != nil {
			return Result{}, err
		}
	}

	s.ValidationNotes = review.Notes
	return Result{Changed: true, Credit: decideReward(s, review, now)}, nil
}

// ValidateReport marks an open report valid or invalid and decides its reward.
// Repeating the same decision is a no-op.
func ValidateReport(s *types.Submission, review Review, now time.Time) (Result, error) {
	if err := requireKind(s, enum.SubmissionKindReport); err != nil {
		return Result{}, err
	}

	target := enum.SubmissionStatusRejected
	if review.Approve {
		target = enum.SubmissionStatusValidated
	}

	if s.Status == target {
		if review.Approve && s.Rewards.Status == enum.RewardStatusApproved && !s.IsCredited() {
			return Result{Credit: s.Rewards.Points}, nil
		}
		return Result{}, nil
	}

	if err := transition(s, target); err != nil {
		return Result{}, err
	}

	s.ValidationNotes = review.Notes
	s.ValidatedBy = review.AdminID
	s.ValidatedAt = now

	return Result{Changed: true, Credit: decideReward(s, review, now)}, nil
}

// ResolveReport closes a validated report.
func ResolveReport(s *types.Submission, now time.Time) (Result, error) {
	if err := requireKind(s, enum.SubmissionKindReport); err != nil {
		return Result{}, err
	}

	if s.Status == enum.SubmissionStatusResolved {
		return Result{}, nil
	}

	if err := transition(s, enum.SubmissionStatusResolved); err != nil {
		return Result{}, err
	}

	s.ResolvedAt = now
	s.UpdatedAt = now

	return Result{Changed: true}, nil
}

// Flag moves an upload into flagged. Points already credited are kept.
func Flag(s *types.Submission, now time.Time) (Result, error) {
	if err := requireKind(s, enum.SubmissionKindUpload); err != nil {
		return Result{}, err
	}

	if s.Status == enum.SubmissionStatusFlagged {
		return Result{}, nil
	}

	if err := transition(s, enum.SubmissionStatusFlagged); err != nil {
		return Result{}, err
	}

	s.UpdatedAt = now
	return Result{Changed: true}, nil
}

// ResetForReanalysis returns a finished analysis to pending so it can be queued again.
// A pending analysis is left as is; an analysis in flight cannot be reset.
func ResetForReanalysis(s *types.Submission, now time.Time) (Result, error) {
	if s.Analysis.Status == enum.AnalysisStatusPending {
		return Result{}, nil
	}

	if err := transitionAnalysis(s, enum.AnalysisStatusPending); err != nil {
		return Result{}, err
	}

	resetAnalysis(s)
	resetReward(s)
	s.UpdatedAt = now

	return Result{Changed: true}, nil
}

// EditContent applies an owner's edit while the submission is still in its initial state.
// It returns true when the photo changed, in which case the analysis was reset and
// the caller must queue it again.
func EditContent(s *types.Submission, userID int64, edit *types.SubmissionEdit, now time.Time) (bool, error) {
	if err := CheckOwnerEditable(s, userID); err != nil {
		return false, err
	}

	if edit.Title != nil {
		s.Title = *edit.Title
	}
	if edit.Description != nil {
		s.Description = *edit.Description
	}
	if edit.IncidentType != nil && s.Kind == enum.SubmissionKindReport {
		s.IncidentType = *edit.IncidentType
		s.Category = edit.IncidentType.Category()
	}
	if edit.Category != nil && s.Kind == enum.SubmissionKindUpload {
		s.Category = *edit.Category
	}
	if edit.Tags != nil {
		s.Tags = edit.Tags
	}
	if edit.Latitude != nil {
		s.Latitude = edit.Latitude
	}
	if edit.Longitude != nil {
		s.Longitude = edit.Longitude
	}

	photoChanged := edit.ImageURL != nil && *edit.ImageURL != s.ImageURL
	if photoChanged {
		s.ImageURL = *edit.ImageURL

		// Any in-flight result for the old photo is refused on completion.
		s.Analysis.Status = enum.AnalysisStatusPending
		resetAnalysis(s)
		resetReward(s)
	}

	s.UpdatedAt = now
	return photoChanged, nil
}

// CheckOwnerEditable returns an error unless userID owns s and s is still editable.
func CheckOwnerEditable(s *types.Submission, userID int64) error {
	if s.UserID != userID {
		return types.ErrNotOwner
	}

	if !s.IsEditable() {
		return fmt.Errorf("%w: %s %d is %s and can no longer be changed",
			types.ErrInvalidTransition, s.Kind, s.ID, s.Status)
	}

	return nil
}

// decideReward records a manual reward decision and returns the points to credit.
func decideReward(s *types.Submission, review Review, now time.Time) int {
	s.Rewards.Manual = true
	s.Rewards.ReviewedAt = now
	s.Rewards.ReviewedBy = review.AdminID
	s.UpdatedAt = now

	if !review.Approve {
		s.Rewards.Status = enum.RewardStatusRejected
		s.Rewards.Badges = scoring.AssignBadges(s.Rewards.Points, &s.Analysis, s.Category)
		return 0
	}

	switch {
	case review.Points != nil && !s.IsCredited():
		s.Rewards.Points = max(0, min(*review.Points, scoring.MaxPoints))
	case s.Rewards.Points == 0 && !s.IsCredited():
		s.Rewards.Points = scoring.ComputePoints(&s.Analysis, s.Category)
	}

	s.Rewards.Status = enum.RewardStatusApproved
	s.Rewards.ApprovedAt = now
	s.Rewards.ApprovedBy = review.AdminID
	s.Rewards.Badges = scoring.AssignBadges(s.Rewards.Points, &s.Analysis, s.Category)

	return s.Rewards.Points
}

func storeAnalysis(s *types.Submission, result types.Analysis, now time.Time) {
	result.Attempts = s.Analysis.Attempts
	result.StartedAt = s.Analysis.StartedAt
	if result.AnalyzedAt.IsZero() {
		result.AnalyzedAt = now
	}

	s.Analysis = result
	s.UpdatedAt = now
}

func resetAnalysis(s *types.Submission) {
	s.Analysis = types.Analysis{Status: enum.AnalysisStatusPending}
}

// resetReward clears an automatic decision that never reached the ledger.
func resetReward(s *types.Submission) {
	if s.Rewards.Manual || s.IsCredited() {
		return
	}

	s.Rewards = types.Rewards{Status: enum.RewardStatusPending, Badges: []enum.Badge{}}

	if s.Kind == enum.SubmissionKindUpload && s.Status == enum.SubmissionStatusRejected {
		s.Status = enum.SubmissionStatusPending
	}
}
