package scoring_test

import (
	"testing"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/scoring"
	"github.com/stretchr/testify/assert"
)

func completed(accuracy, confidence int, quality enum.Quality) *types.Analysis {
	return &types.Analysis{
		Status:     enum.AnalysisStatusCompleted,
		Accuracy:   accuracy,
		Confidence: confidence,
		Quality:    quality,
	}
}

func TestComputePoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		analysis *types.Analysis
		category enum.Category
		want     int
	}{
		{
			name:     "destruction report with good photo",
			analysis: completed(85, 90, enum.QualityGood),
			category: enum.CategoryMangroveDestruction,
			want:     99,
		},
		{
			name:     "capped at maximum",
			analysis: completed(100, 100, enum.QualityExcellent),
			category: enum.CategoryMangroveDestruction,
			want:     100,
		},
		{
			name:     "keyword fallback values",
			analysis: completed(60, 70, enum.QualityFair),
			category: enum.CategoryOther,
			want:     60,
		},
		{
			name:     "zero accuracy poor photo",
			analysis: completed(0, 0, enum.QualityPoor),
			category: enum.CategoryMangroveResearch,
			want:     15,
		},
		{
			name:     "health category bonus",
			analysis: completed(50, 49, enum.QualityFair),
			category: enum.CategoryMangroveHealth,
			want:     62,
		},
		{
			name:     "failed analysis scores nothing",
			analysis: &types.Analysis{Status: enum.AnalysisStatusFailed, Accuracy: 90, Confidence: 90},
			category: enum.CategoryMangroveDestruction,
			want:     0,
		},
		{
			name:     "pending analysis scores nothing",
			analysis: &types.Analysis{Status: enum.AnalysisStatusPending},
			category: enum.CategoryMangroveHealth,
			want:     0,
		},
		{
			name:     "nil analysis scores nothing",
			analysis: nil,
			category: enum.CategoryMangroveHealth,
			want:     0,
		},
		{
			name:     "out of range inputs are clamped",
			analysis: completed(500, -20, enum.QualityFair),
			category: enum.CategoryOther,
			want:     70,
		},
		{
			name:     "unknown quality earns no bonus",
			analysis: completed(40, 14, enum.Quality("blurry")),
			category: enum.CategoryOther,
			want:     32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scoring.ComputePoints(tt.analysis, tt.category))
		})
	}
}

func TestComputePointsBounds(t *testing.T) {
	t.Parallel()

	qualities := []enum.Quality{enum.QualityExcellent, enum.QualityGood, enum.QualityFair, enum.QualityPoor}
	categories := []enum.Category{
		enum.CategoryMangroveHealth, enum.CategoryMangroveDestruction,
		enum.CategoryMangroveConservation, enum.CategoryMangroveResearch, enum.CategoryOther,
	}

	for accuracy := -50; accuracy <= 150; accuracy += 5 {
		for confidence := -50; confidence <= 150; confidence += 5 {
			for _, quality := range qualities {
				for _, category := range categories {
					points := scoring.ComputePoints(completed(accuracy, confidence, quality), category)
					if points < 0 || points > scoring.MaxPoints {
						t.Fatalf("points %d out of range for accuracy=%d confidence=%d quality=%s category=%s",
							points, accuracy, confidence, quality, category)
					}
				}
			}
		}
	}
}

func TestAssignBadges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		points   int
		analysis *types.Analysis
		category enum.Category
		want     []enum.Badge
	}{
		{
			name:     "destruction report with good photo",
			points:   99,
			analysis: completed(85, 90, enum.QualityGood),
			category: enum.CategoryMangroveDestruction,
			want:     []enum.Badge{enum.BadgeHighAccuracy},
		},
		{
			name:     "excellent conservation photo earns everything",
			points:   100,
			analysis: completed(95, 100, enum.QualityExcellent),
			category: enum.CategoryMangroveConservation,
			want: []enum.Badge{
				enum.BadgeHighAccuracy, enum.BadgeExcellentQuality,
				enum.BadgeMangroveExpert, enum.BadgeConservationHero,
			},
		},
		{
			name:     "conservation below hero accuracy",
			points:   70,
			analysis: completed(79, 70, enum.QualityGood),
			category: enum.CategoryMangroveConservation,
			want:     []enum.Badge{enum.BadgeHighAccuracy},
		},
		{
			name:     "hero accuracy outside conservation",
			points:   45,
			analysis: completed(85, 0, enum.QualityPoor),
			category: enum.CategoryMangroveHealth,
			want:     []enum.Badge{},
		},
		{
			name:     "expert accuracy with low points",
			points:   49,
			analysis: completed(90, 0, enum.QualityPoor),
			category: enum.CategoryOther,
			want:     []enum.Badge{enum.BadgeMangroveExpert},
		},
		{
			name:     "nil analysis",
			points:   80,
			analysis: nil,
			category: enum.CategoryOther,
			want:     []enum.Badge{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scoring.AssignBadges(tt.points, tt.analysis, tt.category))
		})
	}
}

func TestEngineScore(t *testing.T) {
	t.Parallel()

	engine := scoring.NewEngine(0)
	assert.Equal(t, scoring.DefaultApprovalThreshold, engine.Threshold())

	t.Run("destruction report is approved", func(t *testing.T) {
		t.Parallel()

		outcome := engine.Score(completed(85, 90, enum.QualityGood), enum.CategoryMangroveDestruction)
		assert.Equal(t, 99, outcome.Points)
		assert.Equal(t, enum.RewardStatusApproved, outcome.Status)
		assert.False(t, scoring.HasBadge(outcome.Badges, enum.BadgeMangroveExpert))
		assert.False(t, scoring.HasBadge(outcome.Badges, enum.BadgeExcellentQuality))
		assert.False(t, scoring.HasBadge(outcome.Badges, enum.BadgeConservationHero))
	})

	t.Run("excellent conservation photo", func(t *testing.T) {
		t.Parallel()

		outcome := engine.Score(completed(95, 100, enum.QualityExcellent), enum.CategoryMangroveConservation)
		assert.Equal(t, 100, outcome.Points)
		assert.Equal(t, enum.RewardStatusApproved, outcome.Status)
		assert.True(t, scoring.HasBadge(outcome.Badges, enum.BadgeMangroveExpert))
		assert.True(t, scoring.HasBadge(outcome.Badges, enum.BadgeExcellentQuality))
		assert.True(t, scoring.HasBadge(outcome.Badges, enum.BadgeConservationHero))
		assert.True(t, scoring.HasBadge(outcome.Badges, enum.BadgeHighAccuracy))
	})

	t.Run("failed analysis is rejected", func(t *testing.T) {
		t.Parallel()

		outcome := engine.Score(&types.Analysis{Status: enum.AnalysisStatusFailed}, enum.CategoryMangroveHealth)
		assert.Zero(t, outcome.Points)
		assert.Empty(t, outcome.Badges)
		assert.Equal(t, enum.RewardStatusRejected, outcome.Status)
	})
}

func TestEngineDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		threshold int
		points    int
		want      enum.RewardStatus
	}{
		{name: "at default threshold", threshold: 0, points: 30, want: enum.RewardStatusApproved},
		{name: "below default threshold", threshold: 0, points: 29, want: enum.RewardStatusRejected},
		{name: "custom threshold", threshold: 60, points: 59, want: enum.RewardStatusRejected},
		{name: "custom threshold met", threshold: 60, points: 60, want: enum.RewardStatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scoring.NewEngine(tt.threshold).Decide(tt.points))
		})
	}
}
