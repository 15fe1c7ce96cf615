package handler

import (
	"net/http"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/auth"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	restTypes "github.com/mangrovewatch/mangrove/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// UserHandler handles profile endpoints.
type UserHandler struct {
	users       UserService
	leaderboard LeaderboardService
	logger      *zap.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users UserService, leaderboard LeaderboardService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:       users,
		leaderboard: leaderboard,
		logger:      logger.Named("user_handler"),
	}
}

// GetMe returns the caller's profile with total points and rank.
// GET /v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, req bunrouter.Request) error {
	profile, err := h.users.GetProfile(req.Context(), auth.UserFromContext(req.Context()).ID)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, profile)
}

// UpdateMe changes the caller's name, phone or location.
// PUT /v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, req bunrouter.Request) error {
	var update types.ProfileUpdate
	if err := decodeJSON(w, req, &update); err != nil {
		return response.Fail(w, h.logger, err)
	}

	user, err := h.users.UpdateProfile(req.Context(), auth.UserFromContext(req.Context()).ID, &update)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, user)
}

// GetRank returns a user's global rank by total points.
// GET /v1/users/:id/rank
func (h *UserHandler) GetRank(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	rank, err := h.leaderboard.GetUserRank(req.Context(), id)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, restTypes.RankResponse{UserID: id, Rank: rank})
}
