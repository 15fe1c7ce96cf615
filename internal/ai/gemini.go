package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/sony/gobreaker"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/json"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/googleapi"
)

const (
	// AnalysisSystemPrompt instructs the model how to assess a submission image.
	AnalysisSystemPrompt = `You are a mangrove conservation expert reviewing citizen-submitted photos.

You will receive a JSON block with the submission kind, category and description, followed by the image.

CRITICAL: Only analyze MANGROVE-related content. Ignore other trees, plants or unrelated content.
If the image does NOT show a mangrove ecosystem, set accuracy to 0 and explain why in notes.

Return:
- accuracy (0-100): how well the image represents the described category
- confidence (0-100): how confident you are in the assessment
- quality: one of excellent, good, fair, poor
- mangroveEvidence: the mangrove features you can see (prop roots, pneumatophores, coastal mud flats)
- notes: a short analysis of the image
- issues: problems with the image, or "None identified"
- recommendations: how the photographer could improve the image`

	// ApplicationJSON is the response MIME type requested from the model.
	ApplicationJSON = "application/json"
)

// submissionMetadata is the JSON block sent alongside the image.
type submissionMetadata struct {
	Kind        enum.SubmissionKind `json:"kind"`
	Category    enum.Category       `json:"category"`
	Description string              `json:"description"`
}

// GeminiClassifier scores submission images using a Gemini vision model.
type GeminiClassifier struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	fetcher   *ImageFetcher
	modelName string
	minify    *minify.M
	breaker   *gobreaker.CircuitBreaker
	semaphore *semaphore.Weighted
	retry     utils.RetryOptions
	logger    *zap.Logger
}

// NewGeminiClassifier creates a classifier backed by the given client.
// A nil client produces a classifier that fails every call with ErrClassifierConfig.
func NewGeminiClassifier(
	client *genai.Client, cfg *config.Gemini, breakerCfg *config.CircuitBreaker, logger *zap.Logger,
) *GeminiClassifier {
	logger = logger.Named("gemini_classifier")

	var model *genai.GenerativeModel
	if client != nil && cfg.Model != "" {
		model = client.GenerativeModel(cfg.Model)
		model.SystemInstruction = genai.NewUserContent(genai.Text(AnalysisSystemPrompt))
		model.ResponseMIMEType = ApplicationJSON
		model.ResponseSchema = analysisSchema()
		model.Temperature = utils.Ptr(cfg.Temperature)
		model.TopP = utils.Ptr(float32(0.5))
	}

	m := minify.New()
	m.AddFunc(ApplicationJSON, json.Minify)

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	imageTimeout := DefaultImageTimeout
	if cfg.ImageTimeout > 0 {
		imageTimeout = time.Duration(cfg.ImageTimeout) * time.Millisecond
	}

	return &GeminiClassifier{
		client:    client,
		model:     model,
		fetcher:   NewImageFetcher(&http.Client{Timeout: imageTimeout}, cfg.MaxImageBytes),
		modelName: cfg.Model,
		minify:    m,
		breaker:   newBreaker(breakerCfg, logger),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		retry:     utils.GetClassifierRetryOptions(),
		logger:    logger,
	}
}

// Classify downloads the image, uploads it to the file store and sends it with
// its metadata to the model. The uploaded file is deleted afterwards.
func (c *GeminiClassifier) Classify(ctx context.Context, req Request) (*RawOutput, error) {
	if c.client == nil || c.model == nil {
		return nil, ErrClassifierConfig
	}

	if req.ImageURL == "" {
		return nil, fmt.Errorf("%w: submission has no image", ErrModelResponse)
	}

	metadata, err := c.buildMetadata(req)
	if err != nil {
		return nil, err
	}

	if err := c.semaphore.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer c.semaphore.Release(1)

	image, err := c.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}

	file, err := c.client.UploadFile(ctx, uuid.NewString(), bytes.NewReader(image.Data), &genai.UploadFileOptions{
		MIMEType: image.MIMEType,
	})
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("failed to upload image: %w", err))
	}
	defer c.cleanupFile(context.WithoutCancel(ctx), file)

	parts := []genai.Part{
		genai.Text("Submission metadata: " + metadata),
		genai.FileData{MIMEType: image.MIMEType, URI: file.URI},
	}

	text, err := utils.WithRetry(ctx, func() (string, error) {
		result, err := c.breaker.Execute(func() (any, error) {
			resp, err := c.model.GenerateContent(ctx, parts...)
			if err != nil {
				return nil, err
			}
			return responseText(resp)
		})
		if err != nil {
			classified := ClassifyError(err)
			if !isRetryable(classified) {
				return "", backoff.Permanent(classified)
			}
			c.logger.Debug("Retrying classifier call",
				zap.Int64("submissionID", req.SubmissionID),
				zap.Error(err))
			return "", classified
		}

		return result.(string), nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	return &RawOutput{Text: text, Model: c.modelName}, nil
}

// cleanupFile deletes an uploaded image.
func (c *GeminiClassifier) cleanupFile(ctx context.Context, file *genai.File) {
	if err := c.client.DeleteFile(ctx, file.Name); err != nil {
		c.logger.Warn("Failed to delete uploaded file",
			zap.String("fileName", file.Name),
			zap.Error(err))
	}
}

func (c *GeminiClassifier) buildMetadata(req Request) (string, error) {
	data, err := sonic.Marshal(submissionMetadata{
		Kind:        req.Kind,
		Category:    req.Category,
		Description: utils.CompressAllWhitespace(req.Description),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal metadata: %w", ErrModelResponse, err)
	}

	data, err = c.minify.Bytes(ApplicationJSON, data)
	if err != nil {
		return "", fmt.Errorf("%w: failed to minify metadata: %w", ErrModelResponse, err)
	}

	return string(data), nil
}

// ClassifyError maps provider errors onto the classifier error taxonomy.
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrModelResponse), errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrImageFetch),
		errors.Is(err, ErrClassifierConfig), errors.Is(err, ErrNetwork), errors.Is(err, ErrCircuitOpen):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrClassifierConfig, err)
		case http.StatusBadRequest, http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrModelResponse, err)
		}
		if apiErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "quota"), strings.Contains(message, "resource exhausted"),
		strings.Contains(message, "rate limit"):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	case strings.Contains(message, "api key"), strings.Contains(message, "permission denied"),
		strings.Contains(message, "unauthenticated"):
		return fmt.Errorf("%w: %w", ErrClassifierConfig, err)
	case strings.Contains(message, "connection"), strings.Contains(message, "timeout"),
		strings.Contains(message, "unavailable"):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	return fmt.Errorf("%w: %w", ErrModelResponse, err)
}

// isRetryable reports whether another attempt might succeed.
func isRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no response from Gemini", ErrModelResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: response contained no text", ErrModelResponse)
	}

	return b.String(), nil
}

func newBreaker(cfg *config.CircuitBreaker, logger *zap.Logger) *gobreaker.CircuitBreaker {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}

	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini_api",
		MaxRequests: max(cfg.MaxRequests, 1),
		Interval:    time.Duration(cfg.Interval) * time.Millisecond,
		Timeout:     time.Duration(max(cfg.Timeout, 1000)) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		IsSuccessful: func(err error) bool {
			// Bad model output says nothing about provider health
			return err == nil || errors.Is(ClassifyError(err), ErrModelResponse)
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Gemini circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"accuracy": {
				Type:        genai.TypeNumber,
				Description: "How well the image represents the described category, 0-100",
			},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "Confidence in the assessment, 0-100",
			},
			"quality": {
				Type:        genai.TypeString,
				Enum:        []string{"excellent", "good", "fair", "poor"},
				Description: "Overall image quality",
			},
			"mangroveEvidence": {Type: genai.TypeString, Description: "Mangrove features visible in the image"},
			"notes":            {Type: genai.TypeString, Description: "Short analysis of the image"},
			"issues":           {Type: genai.TypeString, Description: "Problems with the image"},
			"recommendations":  {Type: genai.TypeString, Description: "How to improve the image"},
		},
		Required: []string{"accuracy", "confidence", "quality", "mangroveEvidence", "notes", "issues", "recommendations"},
	}
}
