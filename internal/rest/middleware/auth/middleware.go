// Package auth resolves bearer tokens to users and guards admin routes.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	"github.com/mangrovewatch/mangrove/internal/session"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type (
	userCtxKey  struct{}
	tokenCtxKey struct{}
)

// SessionStore looks up login sessions.
type SessionStore interface {
	Get(ctx context.Context, token string) (*session.Session, error)
}

// UserStore loads accounts.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*types.User, error)
}

// UserFromContext returns the authenticated user, or nil outside an authenticated route.
func UserFromContext(ctx context.Context) *types.User {
	user, _ := ctx.Value(userCtxKey{}).(*types.User)
	return user
}

// TokenFromContext returns the bearer token of the current request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenCtxKey{}).(string)
	return token
}

// WithUser stores an authenticated user and token in the context.
func WithUser(ctx context.Context, user *types.User, token string) context.Context {
	ctx = context.WithValue(ctx, userCtxKey{}, user)
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// Middleware authenticates requests with a bearer session token.
type Middleware struct {
	sessions SessionStore
	users    UserStore
	logger   *zap.Logger
}

// New creates a new auth middleware.
func New(sessions SessionStore, users UserStore, logger *zap.Logger) *Middleware {
	return &Middleware{
		sessions: sessions,
		users:    users,
		logger:   logger.Named("auth_middleware"),
	}
}

// AsRESTMiddleware rejects requests without a valid session and stores the user in the context.
// Banned users are rejected even with a live session.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		token := bearerToken(req.Header.Get("Authorization"))
		if token == "" {
			return response.Error(w, http.StatusUnauthorized, "missing bearer token")
		}

		sess, err := m.sessions.Get(req.Context(), token)
		if err != nil {
			return response.Fail(w, m.logger, err)
		}

		user, err := m.users.GetByID(req.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, types.ErrUserNotFound) {
				return response.Error(w, http.StatusUnauthorized, types.ErrSessionNotFound.Error())
			}
			return response.Fail(w, m.logger, err)
		}

		if user.Status == enum.UserStatusBanned {
			return response.Fail(w, m.logger, types.ErrUserBanned)
		}

		return next(w, req.WithContext(WithUser(req.Context(), user, token)))
	}
}

// RequireAdmin rejects authenticated users without the admin role.
func (m *Middleware) RequireAdmin(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		user := UserFromContext(req.Context())
		if user == nil || !user.IsAdmin() {
			return response.Fail(w, m.logger, types.ErrForbidden)
		}
		return next(w, req)
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
