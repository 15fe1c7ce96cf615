package analysis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove/internal/pipeline"
	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/worker/analysis"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	defaultWait = 2 * time.Second
	tick        = 10 * time.Millisecond
)

var errDatabaseDown = errors.New("database down")

type fakeProcessor struct {
	mu       sync.Mutex
	seen     []int64
	outcomes map[int64]*pipeline.Outcome
	errs     map[int64]error
}

func (f *fakeProcessor) Process(_ context.Context, submissionID int64) (*pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen = append(f.seen, submissionID)
	if err := f.errs[submissionID]; err != nil {
		return nil, err
	}
	if outcome, ok := f.outcomes[submissionID]; ok {
		return outcome, nil
	}
	return &pipeline.Outcome{SubmissionID: submissionID}, nil
}

func newWorker(t *testing.T, processor analysis.JobProcessor) (*analysis.Worker, *queue.Manager) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	logger := zap.NewNop()
	jobs := queue.NewManager(client, logger)
	reporter := core.NewStatusReporter(client, "analysis", "", "test", logger)

	worker := analysis.NewWorker(jobs, processor, reporter, progress.NewBar(10, "analysis"), analysis.Options{
		BatchSize:   10,
		Concurrency: 2,
	}, logger)

	return worker, jobs
}

func TestRunOnceEmptyQueue(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{}
	worker, _ := newWorker(t, processor)

	result, err := worker.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, analysis.BatchResult{}, result)
	assert.Empty(t, processor.seen)
}

func TestRunOnceProcessesBatch(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{
		outcomes: map[int64]*pipeline.Outcome{
			1: {SubmissionID: 1, Credit: 55},
			2: {SubmissionID: 2, Skipped: true},
		},
		errs: map[int64]error{3: errDatabaseDown},
	}
	worker, jobs := newWorker(t, processor)
	ctx := t.Context()

	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, jobs.Enqueue(ctx, &queue.Item{SubmissionID: id, Priority: queue.NormalPriority}))
	}

	result, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, analysis.BatchResult{Processed: 4, Skipped: 1, Failed: 1, Credited: 1}, result)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, processor.seen)

	// Every job is released, including the failed one
	for _, id := range []int64{1, 2, 3, 4} {
		status, err := jobs.GetStatus(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, status)
	}

	assert.Equal(t, 0, jobs.GetTotalLength(ctx))
}

type processorFunc func(ctx context.Context, submissionID int64) (*pipeline.Outcome, error)

func (f processorFunc) Process(ctx context.Context, submissionID int64) (*pipeline.Outcome, error) {
	return f(ctx, submissionID)
}

func TestRunOnceRequeuesSubmissionEditedDuringAnalysis(t *testing.T) {
	t.Parallel()

	var (
		jobs    *queue.Manager
		editErr error
	)

	// The owner's edit lands while the job still holds its marker
	processor := processorFunc(func(ctx context.Context, submissionID int64) (*pipeline.Outcome, error) {
		editErr = jobs.Enqueue(ctx, &queue.Item{
			SubmissionID: submissionID, Priority: queue.NormalPriority, Reason: "photo_changed",
		})
		return &pipeline.Outcome{SubmissionID: submissionID, Skipped: true, Requeue: true}, nil
	})

	worker, manager := newWorker(t, processor)
	jobs = manager
	ctx := t.Context()

	require.NoError(t, jobs.Enqueue(ctx, &queue.Item{SubmissionID: 5, Priority: queue.NormalPriority}))

	result, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, editErr, queue.ErrAlreadyQueued)
	assert.Equal(t, analysis.BatchResult{Processed: 1, Skipped: 1, Requeued: 1}, result)

	items, err := jobs.Pop(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].SubmissionID)
	assert.Equal(t, analysis.RequeueReason, items[0].Reason)
}

func TestRunOnceDoesNotRequeueFinishedSubmission(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{
		outcomes: map[int64]*pipeline.Outcome{8: {SubmissionID: 8, Skipped: true}},
	}
	worker, jobs := newWorker(t, processor)
	ctx := t.Context()

	require.NoError(t, jobs.Enqueue(ctx, &queue.Item{SubmissionID: 8, Priority: queue.NormalPriority}))

	result, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Requeued)
	assert.Equal(t, 0, jobs.GetTotalLength(ctx))
}

func TestRunOnceDrainsHighPriorityFirst(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{}
	worker, jobs := newWorker(t, processor)
	ctx := t.Context()

	for id := int64(1); id <= 10; id++ {
		require.NoError(t, jobs.Enqueue(ctx, &queue.Item{SubmissionID: id, Priority: queue.LowPriority}))
	}
	require.NoError(t, jobs.Enqueue(ctx, &queue.Item{SubmissionID: 99, Priority: queue.HighPriority}))

	result, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Processed)
	assert.Contains(t, processor.seen, int64(99))
	assert.Equal(t, 1, jobs.GetQueueLength(ctx, queue.LowPriority))
}

func TestStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{}
	worker, jobs := newWorker(t, processor)

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, jobs.Enqueue(ctx, &queue.Item{SubmissionID: 7, Priority: queue.NormalPriority}))

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		processor.mu.Lock()
		defer processor.mu.Unlock()
		return len(processor.seen) == 1
	}, defaultWait, tick)

	cancel()
	<-done
}
