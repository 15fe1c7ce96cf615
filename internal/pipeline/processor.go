// Package pipeline runs one submission through analysis, scoring and crediting.
//
// Each step is a separate transaction on the submission row, so a crash between
// steps leaves the submission in pending or analyzing where the recovery worker
// finds it again.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/ai"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/lifecycle"
	"github.com/mangrovewatch/mangrove/internal/scoring"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single analysis when none is configured.
const DefaultTimeout = 90 * time.Second

// errAnalysisReset marks a result that arrived after an edit reset the analysis.
var errAnalysisReset = errors.New("analysis was reset while the classifier ran")

// Store atomically mutates submissions. Credits reported by a mutation must
// be applied to the ledger in the same transaction.
type Store interface {
	Mutate(
		ctx context.Context, id int64, source string, fn func(*types.Submission) (lifecycle.Result, error),
	) (*types.Submission, lifecycle.Result, error)
}

// Analyzer turns a classification request into a range-safe analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req ai.Request) types.Analysis
}

// Outcome summarizes what processing did to a submission.
type Outcome struct {
	SubmissionID   int64
	Skipped        bool
	AnalysisStatus enum.AnalysisStatus
	RewardStatus   enum.RewardStatus
	Points         int
	Credit         int

	// Requeue is set when the submission was reset for re-analysis while the
	// classifier ran. The caller must queue it again once its job is released.
	Requeue bool
}

// Processor runs the analysis pipeline for single submissions.
type Processor struct {
	store    Store
	analyzer Analyzer
	engine   *scoring.Engine
	timeout  time.Duration
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a Processor. A non-positive timeout uses DefaultTimeout.
func NewProcessor(
	store Store, analyzer Analyzer, engine *scoring.Engine, timeout time.Duration, logger *zap.Logger,
) *Processor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Processor{
		store:    store,
		analyzer: analyzer,
		engine:   engine,
		timeout:  timeout,
		tracer:   otel.Tracer("github.com/mangrovewatch/mangrove/internal/pipeline"),
		logger:   logger.Named("pipeline"),
		now:      time.Now,
	}
}

// Process analyzes, scores and credits one submission.
//
// A submission that is gone, or whose analysis cannot start, is skipped without
// error. One whose analysis was reset while the classifier ran is skipped and
// marked for requeue. A classifier that does not
// answer within the timeout fails the analysis. Errors are returned only for
// storage failures and parent context cancellation, in which case the
// submission stays where the recovery worker can retry it.
func (p *Processor) Process(ctx context.Context, submissionID int64) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Process",
		trace.WithAttributes(attribute.Int64("submission.id", submissionID)))
	defer span.End()

	outcome, err := p.process(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("skipped", outcome.Skipped),
		attribute.Bool("requeue", outcome.Requeue),
		attribute.String("analysis.status", string(outcome.AnalysisStatus)),
		attribute.String("rewards.status", string(outcome.RewardStatus)),
		attribute.Int("rewards.credit", outcome.Credit))

	return outcome, nil
}

func (p *Processor) process(ctx context.Context, submissionID int64) (*Outcome, error) {
	skipped := &Outcome{SubmissionID: submissionID, Skipped: true}

	// Step 1: claim the analysis
	sub, _, err := p.store.Mutate(ctx, submissionID, types.CreditSourceAutomatic,
		func(s *types.Submission) (lifecycle.Result, error) {
			if err := lifecycle.BeginAnalysis(s, p.now()); err != nil {
				return lifecycle.Result{}, err
			}
			return lifecycle.Result{Changed: true}, nil
		})
	if err != nil {
		if isSkippable(err) {
			p.logger.Debug("Skipping submission",
				zap.Int64("submissionID", submissionID),
				zap.Error(err))
			return skipped, nil
		}
		return nil, fmt.Errorf("failed to start analysis: %w", err)
	}

	// Step 2: classify with a bounded timeout
	analysis, err := p.analyze(ctx, sub)
	if err != nil {
		return nil, err
	}

	// Step 3: store the result, score it and credit approved points
	sub, result, err := p.store.Mutate(ctx, submissionID, types.CreditSourceAutomatic,
		func(s *types.Submission) (lifecycle.Result, error) {
			if s.Analysis.Status == enum.AnalysisStatusPending {
				return lifecycle.Result{}, errAnalysisReset
			}
			return lifecycle.FinishAnalysis(s, analysis, p.engine, p.now())
		})
	if err != nil {
		if errors.Is(err, errAnalysisReset) {
			p.logger.Info("Discarded stale analysis result, requeueing",
				zap.Int64("submissionID", submissionID))
			return &Outcome{SubmissionID: submissionID, Skipped: true, Requeue: true}, nil
		}
		if isSkippable(err) {
			p.logger.Info("Discarded stale analysis result",
				zap.Int64("submissionID", submissionID),
				zap.Error(err))
			return skipped, nil
		}
		return nil, fmt.Errorf("failed to finish analysis: %w", err)
	}

	p.logger.Info("Processed submission",
		zap.Int64("submissionID", sub.ID),
		zap.Int64("userID", sub.UserID),
		zap.String("analysisStatus", string(sub.Analysis.Status)),
		zap.String("rewardStatus", string(sub.Rewards.Status)),
		zap.Int("points", sub.Rewards.Points),
		zap.Int("credit", result.Credit))

	return &Outcome{
		SubmissionID:   sub.ID,
		AnalysisStatus: sub.Analysis.Status,
		RewardStatus:   sub.Rewards.Status,
		Points:         sub.Rewards.Points,
		Credit:         result.Credit,
	}, nil
}

// analyze runs the analyzer under the processor timeout. The analyzer keeps
// running in the background after a timeout; its late result is dropped.
func (p *Processor) analyze(ctx context.Context, sub *types.Submission) (types.Analysis, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze")
	defer span.End()

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := ai.Request{
		SubmissionID: sub.ID,
		Kind:         sub.Kind,
		ImageURL:     sub.ImageURL,
		Category:     sub.Category,
		Description:  sub.Description,
	}

	done := make(chan types.Analysis, 1)
	go func() {
		done <- p.analyzer.Analyze(jobCtx, req)
	}()

	select {
	case analysis := <-done:
		return analysis, nil
	case <-jobCtx.Done():
		if err := ctx.Err(); err != nil {
			return types.Analysis{}, fmt.Errorf("analysis interrupted: %w", err)
		}

		p.logger.Warn("Analysis timed out",
			zap.Int64("submissionID", sub.ID),
			zap.Duration("timeout", p.timeout))
		span.SetStatus(codes.Error, "timeout")

		return ai.FailedAnalysis(context.DeadlineExceeded, p.now()), nil
	}
}

func isSkippable(err error) bool {
	return errors.Is(err, types.ErrInvalidTransition) || errors.Is(err, types.ErrSubmissionNotFound)
}
