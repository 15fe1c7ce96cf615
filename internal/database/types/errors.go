package types

import "errors"

var (
	// ErrSubmissionNotFound is returned when no submission matches the given ID.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrUserNotFound is returned when no user matches the given ID or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering with an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserBanned is returned when a banned or inactive user attempts a restricted action.
	ErrUserBanned = errors.New("user is banned or inactive")
	// ErrNotOwner is returned when a user tries to modify a submission they do not own.
	ErrNotOwner = errors.New("submission belongs to another user")
	// ErrForbidden is returned when a non-admin attempts an admin action.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrInvalidTransition is returned when a lifecycle change is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrValidation is returned when input fails validation before anything is stored.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyCredited is returned internally when a submission has a ledger entry already.
	ErrAlreadyCredited = errors.New("points already credited for submission")
	// ErrSessionNotFound is returned when a session token is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
)
