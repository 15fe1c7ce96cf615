package handler

import (
	"context"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/session"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
)

// UserService manages accounts.
type UserService interface {
	Register(ctx context.Context, reg *types.Registration) (*types.User, error)
	Authenticate(ctx context.Context, email, password string) (*types.User, error)
	GetProfile(ctx context.Context, id int64) (*types.UserProfile, error)
	UpdateProfile(ctx context.Context, userID int64, update *types.ProfileUpdate) (*types.User, error)
	List(ctx context.Context, filter types.UserFilter) ([]*types.User, int, error)
	Ban(ctx context.Context, admin *types.User, userID int64, reason string) error
}

// SessionService issues and revokes login sessions.
type SessionService interface {
	Create(ctx context.Context, user *types.User) (*session.Session, error)
	Delete(ctx context.Context, token string) error
	RevokeUser(ctx context.Context, userID int64) (int, error)
}

// SubmissionService manages reports and uploads.
type SubmissionService interface {
	CreateReport(ctx context.Context, user *types.User, in *types.NewReport) (*types.Submission, error)
	CreateUpload(ctx context.Context, user *types.User, in *types.NewUpload) (*types.Submission, error)
	GetOfKind(ctx context.Context, id int64, kind enum.SubmissionKind) (*types.Submission, error)
	GetAnalysis(ctx context.Context, user *types.User, id int64) (*types.Submission, error)
	List(ctx context.Context, filter types.SubmissionFilter) ([]*types.Submission, int, error)
	Update(
		ctx context.Context, user *types.User, id int64, kind enum.SubmissionKind, edit *types.SubmissionEdit,
	) (*types.Submission, error)
	Delete(ctx context.Context, user *types.User, id int64, kind enum.SubmissionKind) error
	Flag(ctx context.Context, user *types.User, id int64, reason enum.FlagReason, notes string) (*types.Submission, error)
	Reanalyze(ctx context.Context, admin *types.User, id int64) (*types.Submission, error)
	GetMapPoints(ctx context.Context, box *types.BoundingBox) ([]*types.MapPoint, error)
}

// ReviewService records admin decisions.
type ReviewService interface {
	ReviewUpload(
		ctx context.Context, admin *types.User, id int64, approve bool, notes string, points *int,
	) (*types.Submission, error)
	ValidateReport(
		ctx context.Context, admin *types.User, id int64, valid bool, notes string, points *int,
	) (*types.Submission, error)
	ResolveReport(ctx context.Context, admin *types.User, id int64) (*types.Submission, error)
	PendingReports(ctx context.Context, admin *types.User, page, limit int) ([]*types.Submission, int, error)
}

// LeaderboardService ranks users.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, query types.LeaderboardQuery, now time.Time) ([]*types.LeaderboardEntry, error)
	GetUserRank(ctx context.Context, userID int64) (int64, error)
}

// StatsService reads dashboard counters and their hourly history.
type StatsService interface {
	GetSystemStats(ctx context.Context) (*types.SystemStats, error)
	GetHourlyStats(ctx context.Context, now time.Time) ([]*types.HourlyStats, error)
}

// ChartStore caches rendered charts.
type ChartStore interface {
	Get(ctx context.Context, kind string) ([]byte, error)
	Set(ctx context.Context, kind string, png []byte) error
}

// WorkerMonitor lists worker heartbeats.
type WorkerMonitor interface {
	GetAllStatuses(ctx context.Context) ([]core.Status, error)
}

// QueueMonitor reports analysis queue depth.
type QueueMonitor interface {
	GetQueueLength(ctx context.Context, priority string) int
}

// ViewService reports when the dashboard counters were last refreshed.
type ViewService interface {
	GetSystemStatsRefreshInfo(ctx context.Context) (lastRefresh, nextRefresh time.Time, err error)
}
