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

// AuthHandler handles registration and login endpoints.
type AuthHandler struct {
	users    UserService
	sessions SessionService
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users UserService, sessions SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		logger:   logger.Named("auth_handler"),
	}
}

// Register creates an account and logs it in.
// POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, req bunrouter.Request) error {
	var reg types.Registration
	if err := decodeJSON(w, req, &reg); err != nil {
		return response.Fail(w, h.logger, err)
	}

	user, err := h.users.Register(req.Context(), &reg)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return h.startSession(w, req, user, http.StatusCreated)
}

// Login exchanges credentials for a session token.
// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.LoginRequest
	if err := decodeJSON(w, req, &body); err != nil {
		return response.Fail(w, h.logger, err)
	}

	user, err := h.users.Authenticate(req.Context(), body.Email, body.Password)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return h.startSession(w, req, user, http.StatusOK)
}

// Logout ends the current session.
// POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, req bunrouter.Request) error {
	if err := h.sessions.Delete(req.Context(), auth.TokenFromContext(req.Context())); err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.Message(w, http.StatusOK, "logged out")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, req bunrouter.Request, user *types.User, status int) error {
	sess, err := h.sessions.Create(req.Context(), user)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	h.logger.Debug("Session started", zap.Int64("userID", user.ID))

	return response.JSON(w, status, restTypes.AuthResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
	})
}
