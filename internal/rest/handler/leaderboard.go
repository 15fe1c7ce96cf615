package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// LeaderboardHandler serves the public leaderboard.
type LeaderboardHandler struct {
	leaderboard LeaderboardService
	logger      *zap.Logger
	now         func() time.Time
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(leaderboard LeaderboardService, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		logger:      logger.Named("leaderboard_handler"),
		now:         time.Now,
	}
}

// GetLeaderboard ranks users for a time window and optional category.
// GET /v1/leaderboard?window=&category=&limit=
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, req bunrouter.Request) error {
	query := types.LeaderboardQuery{
		Window:   enum.LeaderboardWindowAll,
		Category: enum.Category(req.URL.Query().Get("category")),
	}

	if raw := req.URL.Query().Get("window"); raw != "" {
		window, err := enum.LeaderboardWindowString(strings.ToLower(raw))
		if err != nil {
			return response.Fail(w, h.logger, fmt.Errorf("%w: unknown window %q", types.ErrValidation, raw))
		}
		query.Window = window
	}

	limit, err := queryInt(req, "limit")
	if err != nil {
		return response.Fail(w, h.logger, err)
	}
	query.Limit = limit

	entries, err := h.leaderboard.GetLeaderboard(req.Context(), query, h.now())
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, entries)
}
