// Package scoring turns a validated analysis into points, badges and an approval decision.
// Every function here is pure: the same analysis and category always produce the same result.
package scoring

import (
	"slices"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
)

const (
	// BasePoints is awarded for any completed analysis.
	BasePoints = 10
	// MaxPoints caps the final score.
	MaxPoints = 100
	// DefaultApprovalThreshold is the minimum score for automatic approval.
	DefaultApprovalThreshold = 30

	accuracyDivisor   = 2
	confidenceDivisor = 7

	highAccuracyPoints       = 50
	expertAccuracy           = 90
	conservationHeroAccuracy = 80
)

// QualityBonus maps image quality onto bonus points.
var QualityBonus = map[enum.Quality]int{
	enum.QualityExcellent: 25,
	enum.QualityGood:      15,
	enum.QualityFair:      10,
	enum.QualityPoor:      5,
}

// CategoryBonus maps categories onto bonus points. Categories not listed earn nothing.
var CategoryBonus = map[enum.Category]int{
	enum.CategoryMangroveDestruction:  20,
	enum.CategoryMangroveConservation: 15,
	enum.CategoryMangroveHealth:       10,
}

// Outcome is the full scoring result for one submission.
type Outcome struct {
	Points int
	Badges []enum.Badge
	Status enum.RewardStatus
}

// ComputePoints returns the score for an analysis in [0, MaxPoints].
// Analyses that have not completed score zero.
func ComputePoints(analysis *types.Analysis, category enum.Category) int {
	if analysis == nil || analysis.Status != enum.AnalysisStatusCompleted {
		return 0
	}

	accuracy := clampPercent(analysis.Accuracy)
	confidence := clampPercent(analysis.Confidence)

	points := BasePoints +
		accuracy/accuracyDivisor +
		QualityBonus[analysis.Quality] +
		confidence/confidenceDivisor +
		CategoryBonus[category]

	return min(points, MaxPoints)
}

// AssignBadges derives the badge set from points, analysis and category.
// The result is recomputed from scratch and returned in a stable order.
func AssignBadges(points int, analysis *types.Analysis, category enum.Category) []enum.Badge {
	badges := make([]enum.Badge, 0, 4)
	if analysis == nil {
		return badges
	}

	if points >= highAccuracyPoints {
		badges = append(badges, enum.BadgeHighAccuracy)
	}

	if analysis.Quality == enum.QualityExcellent {
		badges = append(badges, enum.BadgeExcellentQuality)
	}

	if analysis.Accuracy >= expertAccuracy {
		badges = append(badges, enum.BadgeMangroveExpert)
	}

	if category == enum.CategoryMangroveConservation && analysis.Accuracy >= conservationHeroAccuracy {
		badges = append(badges, enum.BadgeConservationHero)
	}

	return badges
}

// Engine applies the approval policy on top of the pure scoring functions.
type Engine struct {
	threshold int
}

// NewEngine creates an Engine. A non-positive threshold falls back to the default.
func NewEngine(threshold int) *Engine {
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}

	return &Engine{threshold: threshold}
}

// Threshold returns the minimum score for automatic approval.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Decide returns the reward status for a score.
func (e *Engine) Decide(points int) enum.RewardStatus {
	if points >= e.threshold {
		return enum.RewardStatusApproved
	}

	return enum.RewardStatusRejected
}

// Score computes points, badges and the automatic decision for an analysis.
// Failed or unfinished analyses are always rejected with zero points.
func (e *Engine) Score(analysis *types.Analysis, category enum.Category) Outcome {
	if analysis == nil || analysis.Status != enum.AnalysisStatusCompleted {
		return Outcome{Badges: []enum.Badge{}, Status: enum.RewardStatusRejected}
	}

	points := ComputePoints(analysis, category)

	return Outcome{
		Points: points,
		Badges: AssignBadges(points, analysis, category),
		Status: e.Decide(points),
	}
}

// HasBadge reports whether badges contains badge.
func HasBadge(badges []enum.Badge, badge enum.Badge) bool {
	return slices.Contains(badges, badge)
}

func clampPercent(v int) int {
	return max(0, min(v, 100))
}
