// Package convert maps database types to their REST representation.
package convert

import (
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	restTypes "github.com/mangrovewatch/mangrove/internal/rest/types"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
)

// PublicUser strips private fields from an account.
func PublicUser(u *types.User) *restTypes.PublicUser {
	if u == nil {
		return nil
	}

	return &restTypes.PublicUser{
		ID:          u.ID,
		Name:        u.Name,
		Role:        u.Role,
		Location:    u.Location,
		TotalPoints: u.TotalPoints,
	}
}

// Submission converts a submission for a response.
func Submission(s *types.Submission) *restTypes.Submission {
	return &restTypes.Submission{
		Submission: s,
		Owner:      PublicUser(s.Owner),
	}
}

// Submissions converts a listing page.
func Submissions(subs []*types.Submission, total, page, limit int) restTypes.Page[*restTypes.Submission] {
	items := make([]*restTypes.Submission, len(subs))
	for i, s := range subs {
		items[i] = Submission(s)
	}

	return restTypes.Page[*restTypes.Submission]{Items: items, Total: total, Page: page, Limit: limit}
}

// Analysis extracts the AI analysis view of a submission.
func Analysis(s *types.Submission) *restTypes.AnalysisView {
	return &restTypes.AnalysisView{
		SubmissionID: s.ID,
		Analysis:     s.Analysis,
		Rewards:      s.Rewards,
	}
}

// WorkerStatuses converts worker heartbeats, marking stale ones offline.
func WorkerStatuses(statuses []core.Status, now time.Time) []restTypes.WorkerStatus {
	out := make([]restTypes.WorkerStatus, len(statuses))
	for i, s := range statuses {
		out[i] = restTypes.WorkerStatus{
			WorkerID:    s.WorkerID,
			WorkerType:  s.WorkerType,
			LastSeen:    s.LastSeen,
			CurrentTask: s.CurrentTask,
			Progress:    s.Progress,
			IsHealthy:   s.IsHealthy,
			IsOnline:    s.IsOnline(now),
		}
	}

	return out
}
