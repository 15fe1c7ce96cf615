// Package recovery re-queues analysis jobs lost to crashes and credits
// approved submissions that never reached the ledger.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the wait between sweeps.
	DefaultInterval = time.Minute

	// DefaultStaleAfter is how long a job may be pending or analyzing before it is re-queued.
	DefaultStaleAfter = 10 * time.Minute

	// RequeueReason is recorded on jobs created by a sweep.
	RequeueReason = "recovery"
)

// Submissions finds stuck submissions and queues them again.
type Submissions interface {
	GetStale(ctx context.Context, staleAfter time.Duration, limit int) ([]int64, error)
	GetUncredited(ctx context.Context, limit int) ([]int64, error)
	SubmitForAnalysis(ctx context.Context, submissionID int64, priority, reason string, requestedBy int64) error
}

// Ledger credits approved submissions.
type Ledger interface {
	CreditPoints(ctx context.Context, submissionID int64, source string) (types.CreditResult, error)
}

// Options tunes the sweep.
type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Requeued int
	Credited int
	Failed   int
}

// Worker periodically sweeps for stuck analyses and uncredited rewards.
type Worker struct {
	submissions Submissions
	ledger      Ledger
	bar         *progress.Bar
	reporter    *core.StatusReporter
	logger      *zap.Logger
	interval    time.Duration
	staleAfter  time.Duration
	batchSize   int
}

// New creates a recovery worker wired to the application's services.
func New(app *setup.App, bar *progress.Bar, workerID string, logger *zap.Logger) *Worker {
	cfg := app.Config.Worker.Recovery
	reporter := core.NewStatusReporter(app.StatusClient, "recovery", "", workerID, logger)

	return NewWorker(app.DB.Service().Submission(), app.DB.Service().Ledger(), reporter, bar, Options{
		Interval:   time.Duration(cfg.Interval) * time.Second,
		StaleAfter: cfg.StaleDuration(),
		BatchSize:  cfg.BatchSize,
	}, logger)
}

// NewWorker creates a recovery worker from its parts. Zero options fall back to defaults.
func NewWorker(
	submissions Submissions, ledger Ledger, reporter *core.StatusReporter,
	bar *progress.Bar, opts Options, logger *zap.Logger,
) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = core.RecoveryBatchSize
	}

	return &Worker{
		submissions: submissions,
		ledger:      ledger,
		bar:         bar,
		reporter:    reporter,
		logger:      logger.Named("recovery_worker"),
		interval:    opts.Interval,
		staleAfter:  opts.StaleAfter,
		batchSize:   opts.BatchSize,
	}
}

// Start runs a sweep every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Recovery Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.bar.Reset()
		w.reporter.SetHealthy(true)

		result, err := w.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("Recovery sweep failed", zap.Error(err))
			w.reporter.SetHealthy(false)
		}

		if result.Requeued > 0 || result.Credited > 0 || result.Failed > 0 {
			w.logger.Info("Recovery sweep finished",
				zap.Int("requeued", result.Requeued),
				zap.Int("credited", result.Credited),
				zap.Int("failed", result.Failed))
		}

		w.bar.SetStepMessage("Waiting for next sweep", 100)
		w.reporter.UpdateStatus("Waiting for next sweep", 100)

		select {
		case <-ctx.Done():
			w.logger.Info("Recovery Worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep re-queues stale analyses and credits approved rewards missing from the ledger.
// Errors on individual submissions are counted, not returned.
func (w *Worker) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	// Step 1: Re-queue stale analyses (30%)
	w.bar.SetStepMessage("Re-queueing stale analyses", 30)
	w.reporter.UpdateStatus("Re-queueing stale analyses", 30)

	staleIDs, err := w.submissions.GetStale(ctx, w.staleAfter, w.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to get stale submissions: %w", err)
	}

	for _, id := range staleIDs {
		err := w.submissions.SubmitForAnalysis(ctx, id, queue.LowPriority, RequeueReason, 0)
		if err != nil {
			result.Failed++
			w.logger.Error("Failed to re-queue submission", zap.Int64("submissionID", id), zap.Error(err))
			continue
		}
		result.Requeued++
	}

	// Step 2: Credit approved rewards (70%)
	w.bar.SetStepMessage("Crediting approved rewards", 70)
	w.reporter.UpdateStatus("Crediting approved rewards", 70)

	uncreditedIDs, err := w.submissions.GetUncredited(ctx, w.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to get uncredited submissions: %w", err)
	}

	for _, id := range uncreditedIDs {
		credit, err := w.ledger.CreditPoints(ctx, id, types.CreditSourceRecovery)
		switch {
		case errors.Is(err, types.ErrInvalidTransition):
			// Reward changed since the scan
			continue
		case err != nil:
			result.Failed++
			w.logger.Error("Failed to credit submission", zap.Int64("submissionID", id), zap.Error(err))
			continue
		}

		if credit.Credited {
			result.Credited++
		}
	}

	return result, nil
}
