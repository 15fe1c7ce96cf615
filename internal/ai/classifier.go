package ai

import (
	"context"

	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
)

// Request describes the image and context sent to a classifier.
type Request struct {
	SubmissionID int64
	Kind         enum.SubmissionKind
	ImageURL     string
	Category     enum.Category
	Description  string
}

// RawOutput is the untrusted text a classifier produced.
type RawOutput struct {
	Text  string
	Model string
}

// Classifier scores an image for mangrove relevance and quality.
// Implementations may fail with ErrClassifierConfig, ErrQuotaExceeded or ErrNetwork,
// and may return text that is not JSON.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*RawOutput, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, req Request) (*RawOutput, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, req Request) (*RawOutput, error) {
	return f(ctx, req)
}
