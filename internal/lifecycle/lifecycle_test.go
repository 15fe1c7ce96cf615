package lifecycle_test

import (
	"testing"
	"time"

	"github.com/mangrovewatch/mangrove/internal/ai"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/lifecycle"
	"github.com/mangrovewatch/mangrove/internal/scoring"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpload(category enum.Category) *types.Submission {
	return &types.Submission{
		ID:       1,
		Kind:     enum.SubmissionKindUpload,
		UserID:   10,
		ImageURL: "https://example.com/a.jpg",
		Category: category,
		Status:   enum.SubmissionStatusPending,
		Analysis: types.Analysis{Status: enum.AnalysisStatusPending},
		Rewards:  types.Rewards{Status: enum.RewardStatusPending},
	}
}

func newReport(incident enum.IncidentType) *types.Submission {
	return &types.Submission{
		ID:           2,
		Kind:         enum.SubmissionKindReport,
		UserID:       10,
		ImageURL:     "https://example.com/r.jpg",
		IncidentType: incident,
		Category:     incident.Category(),
		Status:       enum.SubmissionStatusOpen,
		Analysis:     types.Analysis{Status: enum.AnalysisStatusPending},
		Rewards:      types.Rewards{Status: enum.RewardStatusPending},
	}
}

func completedAnalysis(accuracy, confidence int, quality enum.Quality) types.Analysis {
	return types.Analysis{
		Status:     enum.AnalysisStatusCompleted,
		Accuracy:   accuracy,
		Confidence: confidence,
		Quality:    quality,
	}
}

func analyze(t *testing.T, s *types.Submission, result types.Analysis) lifecycle.Result {
	t.Helper()

	now := time.Now()
	require.NoError(t, lifecycle.BeginAnalysis(s, now))

	res, err := lifecycle.FinishAnalysis(s, result, scoring.NewEngine(0), now)
	require.NoError(t, err)

	return res
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind enum.SubmissionKind
		from enum.SubmissionStatus
		to   enum.SubmissionStatus
		want bool
	}{
		{"report open to validated", enum.SubmissionKindReport, enum.SubmissionStatusOpen, enum.SubmissionStatusValidated, true},
		{"report open to rejected", enum.SubmissionKindReport, enum.SubmissionStatusOpen, enum.SubmissionStatusRejected, true},
		{"report open to resolved", enum.SubmissionKindReport, enum.SubmissionStatusOpen, enum.SubmissionStatusResolved, false},
		{"report validated to resolved", enum.SubmissionKindReport, enum.SubmissionStatusValidated, enum.SubmissionStatusResolved, true},
		{"report rejected to open", enum.SubmissionKindReport, enum.SubmissionStatusRejected, enum.SubmissionStatusOpen, false},
		{"upload pending to approved", enum.SubmissionKindUpload, enum.SubmissionStatusPending, enum.SubmissionStatusApproved, true},
		{"upload approved to flagged", enum.SubmissionKindUpload, enum.SubmissionStatusApproved, enum.SubmissionStatusFlagged, true},
		{"upload flagged to pending", enum.SubmissionKindUpload, enum.SubmissionStatusFlagged, enum.SubmissionStatusPending, false},
		{"upload cannot use report states", enum.SubmissionKindUpload, enum.SubmissionStatusPending, enum.SubmissionStatusValidated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, lifecycle.CanTransition(tt.kind, tt.from, tt.to))
		})
	}
}

func TestCanTransitionAnalysis(t *testing.T) {
	t.Parallel()

	assert.True(t, lifecycle.CanTransitionAnalysis(enum.AnalysisStatusPending, enum.AnalysisStatusAnalyzing))
	assert.True(t, lifecycle.CanTransitionAnalysis(enum.AnalysisStatusAnalyzing, enum.AnalysisStatusAnalyzing))
	assert.True(t, lifecycle.CanTransitionAnalysis(enum.AnalysisStatusAnalyzing, enum.AnalysisStatusCompleted))
	assert.False(t, lifecycle.CanTransitionAnalysis(enum.AnalysisStatusPending, enum.AnalysisStatusCompleted))
	assert.False(t, lifecycle.CanTransitionAnalysis(enum.AnalysisStatusCompleted, enum.AnalysisStatusFailed))
}

func TestAutomaticApproval(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveDestruction)
	res := analyze(t, s, completedAnalysis(85, 90, enum.QualityGood))

	assert.Equal(t, 99, res.Credit)
	assert.Equal(t, 99, s.Rewards.Points)
	assert.Equal(t, enum.RewardStatusApproved, s.Rewards.Status)
	assert.Equal(t, enum.SubmissionStatusApproved, s.Status)
	assert.Equal(t, enum.AnalysisStatusCompleted, s.Analysis.Status)
	assert.Equal(t, 1, s.Analysis.Attempts)
	assert.False(t, s.Rewards.ApprovedAt.IsZero())
	assert.NotContains(t, s.Rewards.Badges, enum.BadgeConservationHero)
	assert.NotContains(t, s.Rewards.Badges, enum.BadgeMangroveExpert)
}

func TestAutomaticRejection(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryOther)
	res := analyze(t, s, completedAnalysis(0, 0, enum.QualityPoor))

	// 10 + 0 + 5 + 0 + 0
	assert.Equal(t, 0, res.Credit)
	assert.Equal(t, 15, s.Rewards.Points)
	assert.Equal(t, enum.RewardStatusRejected, s.Rewards.Status)
	assert.Equal(t, enum.SubmissionStatusRejected, s.Status)
}

func TestReportStaysOpenAfterAnalysis(t *testing.T) {
	t.Parallel()

	s := newReport(enum.IncidentTypeCutting)
	res := analyze(t, s, completedAnalysis(85, 90, enum.QualityGood))

	assert.Equal(t, 99, res.Credit)
	assert.Equal(t, enum.SubmissionStatusOpen, s.Status)
	assert.Equal(t, enum.RewardStatusApproved, s.Rewards.Status)
}

func TestFallbackAnalysisIsScored(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveHealth)
	res := analyze(t, s, ai.Fallback("mangrove, but no JSON", time.Now()))

	// 10 + 30 + 10 + 10 + 10
	assert.Equal(t, 70, res.Credit)
	assert.Equal(t, ai.FallbackIssues, s.Analysis.Issues)
}

func TestClassifierFailure(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveConservation)
	res := analyze(t, s, ai.FailedAnalysis(ai.ErrQuotaExceeded, time.Now()))

	assert.Zero(t, res.Credit)
	assert.Equal(t, enum.AnalysisStatusFailed, s.Analysis.Status)
	assert.Equal(t, enum.RewardStatusRejected, s.Rewards.Status)
	assert.Equal(t, enum.SubmissionStatusRejected, s.Status)
	assert.Contains(t, s.Analysis.Notes, "quota")
}

func TestFailureKeepsManualDecision(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryOther)
	_, err := lifecycle.ApplyManualReview(s, lifecycle.Review{Approve: true, AdminID: 1, Points: utils.Ptr(40)}, time.Now())
	require.NoError(t, err)

	analyze(t, s, ai.FailedAnalysis(ai.ErrNetwork, time.Now()))

	assert.Equal(t, enum.RewardStatusApproved, s.Rewards.Status)
	assert.Equal(t, enum.SubmissionStatusApproved, s.Status)
	assert.Equal(t, 40, s.Rewards.Points)
}

func TestCompleteRequiresAnalyzing(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryOther)
	_, err := lifecycle.CompleteAnalysis(s, completedAnalysis(50, 50, enum.QualityGood), scoring.NewEngine(0), time.Now())
	require.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.Equal(t, enum.AnalysisStatusPending, s.Analysis.Status)
}

func TestManualApprovalAfterAutomaticCredit(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryOther)
	// 10 + 10 + 10 + 10 + 0
	res := analyze(t, s, completedAnalysis(20, 70, enum.QualityFair))
	require.Equal(t, 40, res.Credit)
	s.Rewards.CreditedAt = time.Now()

	review, err := lifecycle.ApplyManualReview(s, lifecycle.Review{Approve: true, AdminID: 99, Points: utils.Ptr(90)}, time.Now())
	require.NoError(t, err)

	assert.True(t, review.Changed)
	assert.Equal(t, 40, review.Credit, "override is ignored once credited")
	assert.Equal(t, 40, s.Rewards.Points)
	assert.True(t, s.Rewards.Manual)
	assert.Equal(t, int64(99), s.Rewards.ApprovedBy)

	again, err := lifecycle.ApplyManualReview(s, lifecycle.Review{Approve: true, AdminID: 99}, time.Now())
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Zero(t, again.Credit)
}

func TestManualApprovalUsesOverride(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryOther)
	analyze(t, s, completedAnalysis(0, 0, enum.QualityPoor))
	require.Equal(t, enum.SubmissionStatusRejected, s.Status)

	res, err := lifecycle.ApplyManualReview(s, lifecycle.Review{Approve: true, AdminID: 5, Points: utils.Ptr(150)}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 100, res.Credit)
	assert.Equal(t, enum.SubmissionStatusApproved, s.Status)
	assert.Contains(t, s.Rewards.Badges, enum.BadgeHighAccuracy)
}

func TestManualRejectionKeepsCreditedPoints(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveDestruction)
	analyze(t, s, completedAnalysis(85, 90, enum.QualityGood))
	s.Rewards.CreditedAt = time.Now()

	res, err := lifecycle.ApplyManualReview(s, lifecycle.Review{Approve: false, AdminID: 5}, time.Now())
	require.NoError(t, err)

	assert.Zero(t, res.Credit)
	assert.Equal(t, enum.RewardStatusRejected, s.Rewards.Status)
	assert.Equal(t, 99, s.Rewards.Points)
}

func TestManualReviewAfterLateAnalysis(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveHealth)
	res, err := lifecycle.ApplyManualReview(s, lifecycle.Review{Approve: true, AdminID: 3}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Credit, "nothing to credit before analysis")

	late := analyze(t, s, completedAnalysis(60, 70, enum.QualityGood))
	// 10 + 30 + 15 + 10 + 10
	assert.Equal(t, 75, late.Credit)
	assert.Equal(t, enum.RewardStatusApproved, s.Rewards.Status)
	assert.True(t, s.Rewards.Manual)
}

func TestValidateReport(t *testing.T) {
	t.Parallel()

	s := newReport(enum.IncidentTypeDumping)
	res, err := lifecycle.ValidateReport(s, lifecycle.Review{Approve: true, AdminID: 8, Notes: "confirmed"}, time.Now())
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, enum.SubmissionStatusValidated, s.Status)
	assert.Equal(t, "confirmed", s.ValidationNotes)
	assert.Equal(t, int64(8), s.ValidatedBy)

	again, err := lifecycle.ValidateReport(s, lifecycle.Review{Approve: true, AdminID: 8}, time.Now())
	require.NoError(t, err)
	assert.False(t, again.Changed)

	_, err = lifecycle.ValidateReport(s, lifecycle.Review{Approve: false, AdminID: 8}, time.Now())
	require.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.Equal(t, enum.SubmissionStatusValidated, s.Status)
}

func TestResolveReport(t *testing.T) {
	t.Parallel()

	s := newReport(enum.IncidentTypeOther)
	_, err := lifecycle.ResolveReport(s, time.Now())
	require.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = lifecycle.ValidateReport(s, lifecycle.Review{Approve: true}, time.Now())
	require.NoError(t, err)

	res, err := lifecycle.ResolveReport(s, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enum.SubmissionStatusResolved, s.Status)
	assert.False(t, s.ResolvedAt.IsZero())
}

func TestKindMismatch(t *testing.T) {
	t.Parallel()

	_, err := lifecycle.ValidateReport(newUpload(enum.CategoryOther), lifecycle.Review{Approve: true}, time.Now())
	require.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = lifecycle.Flag(newReport(enum.IncidentTypeOther), time.Now())
	require.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestFlag(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveDestruction)
	analyze(t, s, completedAnalysis(85, 90, enum.QualityGood))
	s.Rewards.CreditedAt = time.Now()

	res, err := lifecycle.Flag(s, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enum.SubmissionStatusFlagged, s.Status)
	assert.Equal(t, enum.RewardStatusApproved, s.Rewards.Status)

	again, err := lifecycle.Flag(s, time.Now())
	require.NoError(t, err)
	assert.False(t, again.Changed)
}

func TestFlaggedUploadWaitsForAdmin(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryMangroveDestruction)
	_, err := lifecycle.Flag(s, time.Now())
	require.NoError(t, err)

	res := analyze(t, s, completedAnalysis(85, 90, enum.QualityGood))
	assert.Zero(t, res.Credit)
	assert.Equal(t, enum.RewardStatusPending, s.Rewards.Status)
	assert.Equal(t, enum.SubmissionStatusFlagged, s.Status)
}

func TestResetForReanalysis(t *testing.T) {
	t.Parallel()

	s := newUpload(enum.CategoryOther)
	analyze(t, s, ai.FailedAnalysis(ai.ErrNetwork, time.Now()))

	res, err := lifecycle.ResetForReanalysis(s, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enum.AnalysisStatusPending, s.Analysis.Status)
	assert.Equal(t, enum.RewardStatusPending, s.Rewards.Status)
	assert.Equal(t, enum.SubmissionStatusPending, s.Status)

	noop, err := lifecycle.ResetForReanalysis(s, time.Now())
	require.NoError(t, err)
	assert.False(t, noop.Changed)

	require.NoError(t, lifecycle.BeginAnalysis(s, time.Now()))
	_, err = lifecycle.ResetForReanalysis(s, time.Now())
	require.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestReanalysisNeverRecreditsOrLowersPoints(t *testing.T) {
	t.Parallel()

	s := newReport(enum.IncidentTypeCutting)
	first := analyze(t, s, completedAnalysis(85, 90, enum.QualityGood))
	require.Equal(t, 99, first.Credit)
	s.Rewards.CreditedAt = time.Now()

	_, err := lifecycle.ResetForReanalysis(s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, enum.RewardStatusApproved, s.Rewards.Status)

	second := analyze(t, s, completedAnalysis(10, 10, enum.QualityPoor))
	assert.Zero(t, second.Credit)
	assert.Equal(t, 99, s.Rewards.Points)
	assert.Equal(t, []enum.Badge{enum.BadgeHighAccuracy}, s.Rewards.Badges)
}

func TestEditContent(t *testing.T) {
	t.Parallel()

	t.Run("owner edits description", func(t *testing.T) {
		t.Parallel()

		s := newUpload(enum.CategoryOther)
		changed, err := lifecycle.EditContent(s, 10, &types.SubmissionEdit{Description: utils.Ptr("new description")}, time.Now())
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, "new description", s.Description)
	})

	t.Run("photo change resets analysis", func(t *testing.T) {
		t.Parallel()

		s := newReport(enum.IncidentTypeCutting)
		require.NoError(t, lifecycle.BeginAnalysis(s, time.Now()))

		changed, err := lifecycle.EditContent(s, 10, &types.SubmissionEdit{ImageURL: utils.Ptr("https://example.com/b.jpg")}, time.Now())
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, enum.AnalysisStatusPending, s.Analysis.Status)

		_, err = lifecycle.CompleteAnalysis(s, completedAnalysis(90, 90, enum.QualityGood), scoring.NewEngine(0), time.Now())
		require.ErrorIs(t, err, types.ErrInvalidTransition, "stale result for the old photo is refused")
	})

	t.Run("incident type updates category", func(t *testing.T) {
		t.Parallel()

		s := newReport(enum.IncidentTypeCutting)
		_, err := lifecycle.EditContent(s, 10, &types.SubmissionEdit{IncidentType: utils.Ptr(enum.IncidentTypePollution)}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, enum.CategoryMangroveHealth, s.Category)
	})

	t.Run("non owner", func(t *testing.T) {
		t.Parallel()

		s := newUpload(enum.CategoryOther)
		_, err := lifecycle.EditContent(s, 11, &types.SubmissionEdit{Description: utils.Ptr("x")}, time.Now())
		require.ErrorIs(t, err, types.ErrNotOwner)
		assert.Empty(t, s.Description)
	})

	t.Run("terminal state", func(t *testing.T) {
		t.Parallel()

		s := newReport(enum.IncidentTypeOther)
		_, err := lifecycle.ValidateReport(s, lifecycle.Review{Approve: false}, time.Now())
		require.NoError(t, err)

		_, err = lifecycle.EditContent(s, 10, &types.SubmissionEdit{ImageURL: utils.Ptr("https://example.com/c.jpg")}, time.Now())
		require.ErrorIs(t, err, types.ErrInvalidTransition)
		assert.Equal(t, "https://example.com/r.jpg", s.ImageURL)
	})
}
