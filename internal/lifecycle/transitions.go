// Package lifecycle holds the state machines for submissions.
//
// A submission carries three pieces of state: the lifecycle status (different
// for reports and uploads), the analysis sub-state and the reward sub-state.
// Every mutation in this package validates the transition first and leaves the
// submission untouched when it is refused.
package lifecycle

import (
	"fmt"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
)

type statusSet map[enum.SubmissionStatus]struct{}

func set(statuses ...enum.SubmissionStatus) statusSet {
	s := make(statusSet, len(statuses))
	for _, status := range statuses {
		s[status] = struct{}{}
	}
	return s
}

var reportTransitions = map[enum.SubmissionStatus]statusSet{
	enum.SubmissionStatusOpen:      set(enum.SubmissionStatusValidated, enum.SubmissionStatusRejected),
	enum.SubmissionStatusValidated: set(enum.SubmissionStatusResolved),
}

var uploadTransitions = map[enum.SubmissionStatus]statusSet{
	enum.SubmissionStatusPending: set(
		enum.SubmissionStatusApproved, enum.SubmissionStatusRejected, enum.SubmissionStatusFlagged,
	),
	enum.SubmissionStatusApproved: set(enum.SubmissionStatusFlagged, enum.SubmissionStatusRejected),
	enum.SubmissionStatusRejected: set(enum.SubmissionStatusApproved, enum.SubmissionStatusPending),
	enum.SubmissionStatusFlagged:  set(enum.SubmissionStatusApproved, enum.SubmissionStatusRejected),
}

type analysisSet map[enum.AnalysisStatus]struct{}

var analysisTransitions = map[enum.AnalysisStatus]analysisSet{
	enum.AnalysisStatusPending: {
		enum.AnalysisStatusAnalyzing: {},
		enum.AnalysisStatusFailed:    {},
	},
	enum.AnalysisStatusAnalyzing: {
		// Re-entering analyzing lets a recovered job start over.
		enum.AnalysisStatusAnalyzing: {},
		enum.AnalysisStatusCompleted: {},
		enum.AnalysisStatusFailed:    {},
	},
	enum.AnalysisStatusCompleted: {enum.AnalysisStatusPending: {}},
	enum.AnalysisStatusFailed:    {enum.AnalysisStatusPending: {}},
}

// CanTransition reports whether a submission of the given kind may move between lifecycle states.
func CanTransition(kind enum.SubmissionKind, from, to enum.SubmissionStatus) bool {
	table := uploadTransitions
	if kind == enum.SubmissionKindReport {
		table = reportTransitions
	}

	_, ok := table[from][to]
	return ok
}

// CanTransitionAnalysis reports whether the analysis sub-state may move from one state to another.
func CanTransitionAnalysis(from, to enum.AnalysisStatus) bool {
	_, ok := analysisTransitions[from][to]
	return ok
}

func transition(s *types.Submission, to enum.SubmissionStatus) error {
	if !CanTransition(s.Kind, s.Status, to) {
		return fmt.Errorf("%w: %s %d cannot move from %s to %s",
			types.ErrInvalidTransition, s.Kind, s.ID, s.Status, to)
	}

	s.Status = to
	return nil
}

func transitionAnalysis(s *types.Submission, to enum.AnalysisStatus) error {
	if !CanTransitionAnalysis(s.Analysis.Status, to) {
		return fmt.Errorf("%w: analysis of submission %d cannot move from %s to %s",
			types.ErrInvalidTransition, s.ID, s.Analysis.Status, to)
	}

	s.Analysis.Status = to
	return nil
}

func requireKind(s *types.Submission, kind enum.SubmissionKind) error {
	if s.Kind != kind {
		return fmt.Errorf("%w: submission %d is a %s, not a %s", types.ErrInvalidTransition, s.ID, s.Kind, kind)
	}
	return nil
}
