package ai

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"go.uber.org/zap"
)

const (
	// FallbackKeyword is searched for when the response cannot be parsed.
	FallbackKeyword = "mangrove"
	// FallbackKeywordAccuracy is used when the keyword is present in unparseable text.
	FallbackKeywordAccuracy = 60
	// DefaultConfidence replaces missing or non-numeric confidence values.
	DefaultConfidence = 70
	// FallbackIssues marks analyses produced by the keyword heuristic.
	FallbackIssues = "parsing failed, manual review recommended"
	// FailedNotesPrefix starts the notes of every failed analysis.
	FailedNotesPrefix = "AI analysis failed: "

	defaultEvidence        = "Mangrove evidence not clearly identified"
	defaultNotes           = "AI analysis completed"
	defaultIssues          = "None identified"
	defaultRecommendations = "Image appears suitable"
	fallbackEvidence       = "Response parsing failed"
	fallbackRecommendation = "Manual review recommended"

	maxTextLength = 2000
)

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// RawAnalysis mirrors the JSON object the model is asked to produce.
// Fields are untyped because the model does not always respect the schema.
type RawAnalysis struct {
	Accuracy         any `json:"accuracy"`
	Confidence       any `json:"confidence"`
	Quality          any `json:"quality"`
	MangroveEvidence any `json:"mangroveEvidence"`
	Notes            any `json:"notes"`
	Issues           any `json:"issues"`
	Recommendations  any `json:"recommendations"`
}

// Adapter calls a classifier and turns whatever it returns into a validated analysis.
// Errors never cross this boundary: failures become a failed analysis.
type Adapter struct {
	classifier Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdapter creates an Adapter around the given classifier.
func NewAdapter(classifier Classifier, logger *zap.Logger) *Adapter {
	return &Adapter{
		classifier: classifier,
		logger:     logger.Named("ai_adapter"),
		now:        time.Now,
	}
}

// Analyze classifies the request and returns a range-safe analysis.
// The result status is always completed or failed.
func (a *Adapter) Analyze(ctx context.Context, req Request) types.Analysis {
	if a.classifier == nil {
		return FailedAnalysis(ErrClassifierConfig, a.now())
	}

	raw, err := a.classifier.Classify(ctx, req)
	if err != nil {
		a.logger.Warn("Classifier call failed",
			zap.Int64("submissionID", req.SubmissionID),
			zap.Error(err))
		return FailedAnalysis(err, a.now())
	}

	if raw == nil {
		return FailedAnalysis(ErrModelResponse, a.now())
	}

	analysis, parsed := ParseResponse(raw.Text, a.now())
	if !parsed {
		a.logger.Warn("Classifier response was not valid JSON, using keyword fallback",
			zap.Int64("submissionID", req.SubmissionID),
			zap.String("model", raw.Model),
			zap.Int("accuracy", analysis.Accuracy))
	}

	return analysis
}

// ParseResponse extracts the outermost JSON object from text and sanitizes it.
// When no object can be decoded it applies the keyword fallback and returns false.
func ParseResponse(text string, now time.Time) (types.Analysis, bool) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return Fallback(text, now), false
	}

	var raw RawAnalysis
	if err := sonic.UnmarshalString(match, &raw); err != nil {
		return Fallback(text, now), false
	}

	return Sanitize(&raw, now), true
}

// Sanitize clamps numeric fields, defaults the quality and coerces strings.
// Missing or non-numeric accuracy becomes 0 and confidence becomes DefaultConfidence.
func Sanitize(raw *RawAnalysis, now time.Time) types.Analysis {
	accuracy, ok := toNumber(raw.Accuracy)
	if !ok {
		accuracy = 0
	}

	confidence, ok := toNumber(raw.Confidence)
	if !ok {
		confidence = DefaultConfidence
	}

	quality := enum.Quality(strings.ToLower(strings.TrimSpace(toString(raw.Quality))))
	if !quality.IsValid() {
		quality = enum.QualityFair
	}

	return types.Analysis{
		Status:           enum.AnalysisStatusCompleted,
		Accuracy:         clamp(accuracy),
		Confidence:       clamp(confidence),
		Quality:          quality,
		MangroveEvidence: stringOr(raw.MangroveEvidence, defaultEvidence),
		Notes:            stringOr(raw.Notes, defaultNotes),
		Issues:           stringOr(raw.Issues, defaultIssues),
		Recommendations:  stringOr(raw.Recommendations, defaultRecommendations),
		AnalyzedAt:       now,
	}
}

// Fallback builds a low-confidence analysis from unstructured text.
func Fallback(text string, now time.Time) types.Analysis {
	accuracy := 0
	if utils.NewTextNormalizer().Contains(text, FallbackKeyword) {
		accuracy = FallbackKeywordAccuracy
	}

	notes := utils.TruncateRunes(strings.TrimSpace(text), maxTextLength)
	if notes == "" {
		notes = defaultNotes
	}

	return types.Analysis{
		Status:           enum.AnalysisStatusCompleted,
		Accuracy:         accuracy,
		Confidence:       DefaultConfidence,
		Quality:          enum.QualityFair,
		MangroveEvidence: fallbackEvidence,
		Notes:            notes,
		Issues:           FallbackIssues,
		Recommendations:  fallbackRecommendation,
		AnalyzedAt:       now,
	}
}

// FailedAnalysis records a classifier failure as a terminal analysis.
func FailedAnalysis(err error, now time.Time) types.Analysis {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}

	return types.Analysis{
		Status:     enum.AnalysisStatusFailed,
		Notes:      utils.TruncateRunes(FailedNotesPrefix+message, maxTextLength),
		AnalyzedAt: now,
	}
}

// toNumber accepts JSON numbers and numeric strings.
func toNumber(v any) (float64, bool) {
	var f float64

	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

func clamp(v float64) int {
	return int(math.Round(max(0, min(v, 100))))
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case []any:
		parts := make([]string, 0, len(s))
		for _, item := range s {
			if str := toString(item); str != "" {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

func stringOr(v any, fallback string) string {
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return fallback
	}

	return utils.TruncateRunes(s, maxTextLength)
}
