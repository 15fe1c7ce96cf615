package response

import (
	"errors"
	"net/http"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"go.uber.org/zap"
)

// ErrBadRequest marks malformed request input such as invalid JSON or path parameters.
var ErrBadRequest = errors.New("bad request")

// Status maps a service error to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidCredentials), errors.Is(err, types.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrUserBanned), errors.Is(err, types.ErrForbidden), errors.Is(err, types.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, types.ErrSubmissionNotFound), errors.Is(err, types.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrEmailTaken), errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrAlreadyCredited):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes the envelope for a service error. Internal errors are logged
// and their message is not exposed.
func Fail(w http.ResponseWriter, logger *zap.Logger, err error) error {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		return Error(w, status, "internal server error")
	}

	return Error(w, status, err.Error())
}
