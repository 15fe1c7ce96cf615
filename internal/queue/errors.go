package queue

import "errors"

var (
	// ErrAlreadyQueued indicates the submission already has a job waiting or running.
	ErrAlreadyQueued = errors.New("submission is already queued for analysis")
	// ErrInvalidPriority indicates an unknown priority level.
	ErrInvalidPriority = errors.New("invalid queue priority")
)
