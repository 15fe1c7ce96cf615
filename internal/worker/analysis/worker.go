// Package analysis runs queued submissions through the classification pipeline.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove/internal/pipeline"
	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"github.com/mangrovewatch/mangrove/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is the wait between polls of an empty queue.
	DefaultPollInterval = 2 * time.Second

	// ErrorBackoff is the wait after the queue could not be read.
	ErrorBackoff = 30 * time.Second

	// RequeueReason is recorded on jobs queued again after an edit during analysis.
	RequeueReason = "edited_during_analysis"
)

// JobSource hands out analysis jobs and releases them once handled.
type JobSource interface {
	Enqueue(ctx context.Context, item *queue.Item) error
	Pop(ctx context.Context, batchSize int) ([]*queue.Item, error)
	Complete(ctx context.Context, submissionID int64)
}

// JobProcessor runs one submission through the pipeline.
type JobProcessor interface {
	Process(ctx context.Context, submissionID int64) (*pipeline.Outcome, error)
}

// Options tunes the worker loop.
type Options struct {
	BatchSize    int
	Concurrency  int
	PollInterval time.Duration
}

// BatchResult summarizes one batch.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
	Credited  int
	Requeued  int
}

// Worker pops jobs in priority order and processes them concurrently.
type Worker struct {
	jobs         JobSource
	processor    JobProcessor
	bar          *progress.Bar
	reporter     *core.StatusReporter
	logger       *zap.Logger
	batchSize    int
	concurrency  int
	pollInterval time.Duration
}

// New creates an analysis worker wired to the application's queue and database.
func New(app *setup.App, bar *progress.Bar, workerID string, logger *zap.Logger) *Worker {
	cfg := app.Config.Worker.Analysis

	processor := pipeline.NewProcessor(
		app.DB.Service().Submission(), app.Analyzer, app.Scoring, cfg.JobTimeout(), logger,
	)
	reporter := core.NewStatusReporter(app.StatusClient, "analysis", "", workerID, logger)

	return NewWorker(app.Queue, processor, reporter, bar, Options{
		BatchSize:    cfg.BatchSize,
		Concurrency:  cfg.Concurrency,
		PollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
	}, logger)
}

// NewWorker creates an analysis worker from its parts. Zero options fall back to defaults.
func NewWorker(
	jobs JobSource, processor JobProcessor, reporter *core.StatusReporter,
	bar *progress.Bar, opts Options, logger *zap.Logger,
) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = core.AnalysisBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = core.AnalysisConcurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Worker{
		jobs:         jobs,
		processor:    processor,
		bar:          bar,
		reporter:     reporter,
		logger:       logger.Named("analysis_worker"),
		batchSize:    opts.BatchSize,
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Analysis Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	for ctx.Err() == nil {
		w.bar.Reset()
		w.reporter.SetHealthy(true)

		result, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			w.logger.Error("Failed to get next batch", zap.Error(err))
			w.reporter.SetHealthy(false)
			if !utils.ErrorSleep(ctx, ErrorBackoff, w.logger, "analysis worker") {
				break
			}
			continue
		}

		// Nothing queued, wait before polling again
		if result.Processed == 0 {
			w.bar.SetStepMessage("No jobs queued, waiting", 0)
			w.reporter.UpdateStatus("No jobs queued, waiting", 0)
			if !utils.IntervalSleep(ctx, w.pollInterval, w.logger, "analysis worker") {
				break
			}
			continue
		}

		w.bar.SetStepMessage("Completed", 100)
		w.reporter.UpdateStatus("Completed", 100)

		w.logger.Info("Processed analysis batch",
			zap.Int("processed", result.Processed),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Int("credited", result.Credited),
			zap.Int("requeued", result.Requeued))
	}

	w.logger.Info("Analysis Worker stopped")
}

// RunOnce pops one batch and processes it. An empty queue returns a zero result.
func (w *Worker) RunOnce(ctx context.Context) (BatchResult, error) {
	// Step 1: Get next batch (10%)
	w.bar.SetStepMessage("Getting next batch", 10)
	w.reporter.UpdateStatus("Getting next batch", 10)

	items, err := w.jobs.Pop(ctx, w.batchSize)
	if err != nil {
		return BatchResult{}, err
	}

	if len(items) == 0 {
		return BatchResult{}, nil
	}

	// Step 2: Process batch (20% to 100%)
	message := fmt.Sprintf("Analyzing %d submissions", len(items))
	w.bar.SetStepMessage(message, 20)
	w.reporter.UpdateStatus(message, 20)

	return w.processItems(ctx, items), nil
}

// processItems runs the pipeline for every item. Jobs are released even when
// processing fails so the recovery worker can queue them again.
func (w *Worker) processItems(ctx context.Context, items []*queue.Item) BatchResult {
	var (
		p      = pool.New().WithContext(ctx).WithMaxGoroutines(w.concurrency)
		mu     sync.Mutex
		result BatchResult
	)

	for _, item := range items {
		p.Go(func(ctx context.Context) error {
			outcome, err := w.processor.Process(ctx, item.SubmissionID)
			w.jobs.Complete(context.WithoutCancel(ctx), item.SubmissionID)

			requeued := err == nil && outcome.Requeue && w.requeue(ctx, item)

			mu.Lock()
			defer mu.Unlock()

			result.Processed++
			if requeued {
				result.Requeued++
			}

			switch {
			case err != nil:
				result.Failed++
				w.logger.Error("Failed to process submission",
					zap.Int64("submissionID", item.SubmissionID),
					zap.String("jobID", item.JobID),
					zap.Error(err))
			case outcome.Skipped:
				result.Skipped++
			case outcome.Credit > 0:
				result.Credited++
			}

			pct := int64(20 + 80*result.Processed/len(items))
			w.bar.SetStepMessage(fmt.Sprintf("Analyzed %d/%d", result.Processed, len(items)), pct)
			w.reporter.UpdateStatus(fmt.Sprintf("Analyzed %d/%d", result.Processed, len(items)), int(pct))

			return nil
		})
	}

	_ = p.Wait()

	return result
}

// requeue queues a job again after its analysis was reset mid-run. The old
// job's marker is already released, so the edit's own enqueue may have won.
func (w *Worker) requeue(ctx context.Context, item *queue.Item) bool {
	err := w.jobs.Enqueue(context.WithoutCancel(ctx), &queue.Item{
		SubmissionID: item.SubmissionID,
		Priority:     queue.NormalPriority,
		Reason:       RequeueReason,
		RequestedBy:  item.RequestedBy,
	})
	switch {
	case errors.Is(err, queue.ErrAlreadyQueued):
		return false
	case err != nil:
		w.logger.Error("Failed to requeue edited submission",
			zap.Int64("submissionID", item.SubmissionID),
			zap.Error(err))
		return false
	}

	w.logger.Info("Requeued submission edited during analysis",
		zap.Int64("submissionID", item.SubmissionID))

	return true
}
