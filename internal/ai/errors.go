package ai

import "errors"

// Package-level errors.
var (
	// ErrModelResponse indicates the model returned no usable response.
	ErrModelResponse = errors.New("model response error")
	// ErrQuotaExceeded indicates the provider rejected the call for rate or quota reasons.
	ErrQuotaExceeded = errors.New("classifier quota exceeded")
	// ErrClassifierConfig indicates the classifier is missing credentials or a model.
	ErrClassifierConfig = errors.New("classifier not configured")
	// ErrNetwork indicates the classifier could not be reached.
	ErrNetwork = errors.New("classifier network error")
	// ErrCircuitOpen indicates calls are being shed after repeated failures.
	ErrCircuitOpen = errors.New("classifier circuit breaker open")
)
