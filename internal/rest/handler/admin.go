package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/service"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/rest/convert"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/auth"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	restTypes "github.com/mangrovewatch/mangrove/internal/rest/types"
	"github.com/mangrovewatch/mangrove/internal/statistics"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// AdminDeps groups the services used by the admin endpoints.
type AdminDeps struct {
	Users       UserService
	Sessions    SessionService
	Submissions SubmissionService
	Reviews     ReviewService
	Stats       StatsService
	Views       ViewService
	Charts      ChartStore
	Workers     WorkerMonitor
	Queue       QueueMonitor
}

// AdminHandler handles moderation and dashboard endpoints. Every route
// behind it requires the admin role.
type AdminHandler struct {
	AdminDeps

	logger *zap.Logger
	now    func() time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDeps, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		AdminDeps: deps,
		logger:    logger.Named("admin_handler"),
		now:       time.Now,
	}
}

// ListUsers returns a page of accounts filtered by role and status.
// GET /v1/admin/users?role=&status=&page=&limit=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, req bunrouter.Request) error {
	page, limit, err := pagination(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}
	page, limit = service.NormalizePage(page, limit)

	users, total, err := h.Users.List(req.Context(), types.UserFilter{
		Role:   enum.Role(req.URL.Query().Get("role")),
		Status: enum.UserStatus(req.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, restTypes.Page[*types.User]{
		Items: users, Total: total, Page: page, Limit: limit,
	})
}

// BanUser bans an account and ends all of its sessions.
// POST /v1/admin/users/:id/ban
func (h *AdminHandler) BanUser(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	var body restTypes.BanRequest
	if err := decodeJSON(w, req, &body); err != nil {
		return response.Fail(w, h.logger, err)
	}

	if err := h.Users.Ban(req.Context(), auth.UserFromContext(req.Context()), id, body.Reason); err != nil {
		return response.Fail(w, h.logger, err)
	}

	revoked, err := h.Sessions.RevokeUser(req.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to revoke sessions of banned user", zap.Int64("userID", id), zap.Error(err))
	}

	h.logger.Info("User banned",
		zap.Int64("userID", id),
		zap.Int("revokedSessions", revoked))

	return response.Message(w, http.StatusOK, "user banned")
}

// ListSubmissions returns reports and uploads of every owner.
// GET /v1/admin/submissions?kind=&status=&category=&userId=&page=&limit=
func (h *AdminHandler) ListSubmissions(w http.ResponseWriter, req bunrouter.Request) error {
	filter, err := submissionFilter(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return response.Fail(w, h.logger, fmt.Errorf("%w: unknown kind %q", types.ErrValidation, filter.Kind))
	}

	return listSubmissions(w, req, h.Submissions, filter, h.logger)
}

// PendingReports lists reports awaiting validation.
// GET /v1/admin/reports/pending
func (h *AdminHandler) PendingReports(w http.ResponseWriter, req bunrouter.Request) error {
	page, limit, err := pagination(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}
	page, limit = service.NormalizePage(page, limit)

	subs, total, err := h.Reviews.PendingReports(req.Context(), auth.UserFromContext(req.Context()), page, limit)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submissions(subs, total, page, limit))
}

// ReviewUpload approves or rejects an upload.
// PUT /v1/admin/uploads/:id/review
func (h *AdminHandler) ReviewUpload(w http.ResponseWriter, req bunrouter.Request) error {
	return h.decide(w, req, restTypes.DecisionApprove, restTypes.DecisionReject, h.Reviews.ReviewUpload)
}

// ValidateReport marks a report valid or invalid.
// PUT /v1/admin/reports/:id/validate
func (h *AdminHandler) ValidateReport(w http.ResponseWriter, req bunrouter.Request) error {
	return h.decide(w, req, restTypes.DecisionValid, restTypes.DecisionInvalid, h.Reviews.ValidateReport)
}

type decideFunc func(
	ctx context.Context, admin *types.User, id int64, approve bool, notes string, points *int,
) (*types.Submission, error)

func (h *AdminHandler) decide(w http.ResponseWriter, req bunrouter.Request, yes, no string, fn decideFunc) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	var body restTypes.ReviewRequest
	if err := decodeJSON(w, req, &body); err != nil {
		return response.Fail(w, h.logger, err)
	}

	var approve bool
	switch body.Decision {
	case yes:
		approve = true
	case no:
	default:
		return response.Fail(w, h.logger,
			fmt.Errorf("%w: decision must be %q or %q", types.ErrValidation, yes, no))
	}

	sub, err := fn(req.Context(), auth.UserFromContext(req.Context()), id, approve, body.Notes, body.Points)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submission(sub))
}

// ResolveReport closes a validated report.
// PUT /v1/admin/reports/:id/resolve
func (h *AdminHandler) ResolveReport(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	sub, err := h.Reviews.ResolveReport(req.Context(), auth.UserFromContext(req.Context()), id)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submission(sub))
}

// Reanalyze queues a submission for analysis again at high priority.
// POST /v1/admin/submissions/:id/reanalyze
func (h *AdminHandler) Reanalyze(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	sub, err := h.Submissions.Reanalyze(req.Context(), auth.UserFromContext(req.Context()), id)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusAccepted, convert.Submission(sub))
}

// GetStats returns the dashboard counters with queue depth.
// GET /v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, req bunrouter.Request) error {
	ctx := req.Context()

	stats, err := h.Stats.GetSystemStats(ctx)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	result := restTypes.AdminStats{
		SystemStats: stats,
		Queue: restTypes.QueueStats{
			High:   h.Queue.GetQueueLength(ctx, queue.HighPriority),
			Normal: h.Queue.GetQueueLength(ctx, queue.NormalPriority),
			Low:    h.Queue.GetQueueLength(ctx, queue.LowPriority),
		},
	}

	lastRefresh, nextRefresh, err := h.Views.GetSystemStatsRefreshInfo(ctx)
	if err != nil {
		h.logger.Warn("Failed to get stats refresh info", zap.Error(err))
	} else {
		result.LastRefresh, result.NextRefresh = lastRefresh, nextRefresh
	}

	return response.JSON(w, http.StatusOK, result)
}

// GetStatsChart returns the last 24 hours as a PNG chart.
// The cached render from the stats worker is served when present.
// GET /v1/admin/stats/chart?kind=activity|points
func (h *AdminHandler) GetStatsChart(w http.ResponseWriter, req bunrouter.Request) error {
	ctx := req.Context()

	kind := req.URL.Query().Get("kind")
	if kind == "" {
		kind = statistics.ChartActivity
	}
	if !slices.Contains(statistics.ChartKinds, kind) {
		return response.Fail(w, h.logger, fmt.Errorf("%w: %w %q", types.ErrValidation, statistics.ErrUnknownChart, kind))
	}

	png, err := h.Charts.Get(ctx, kind)
	if err != nil {
		h.logger.Warn("Failed to read cached chart", zap.String("kind", kind), zap.Error(err))
	}

	if png == nil {
		hourly, err := h.Stats.GetHourlyStats(ctx, h.now())
		if err != nil {
			return response.Fail(w, h.logger, err)
		}

		png, err = statistics.NewChartBuilder(hourly, h.now()).Build(kind)
		if err != nil {
			return response.Fail(w, h.logger, err)
		}

		if err := h.Charts.Set(ctx, kind, png); err != nil {
			h.logger.Warn("Failed to cache chart", zap.String("kind", kind), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(png)

	return err
}

// ListWorkers returns the heartbeat of every worker.
// GET /v1/admin/workers
func (h *AdminHandler) ListWorkers(w http.ResponseWriter, req bunrouter.Request) error {
	statuses, err := h.Workers.GetAllStatuses(req.Context())
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.WorkerStatuses(statuses, h.now()))
}
