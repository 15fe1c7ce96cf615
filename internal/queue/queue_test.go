package queue_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTest(t *testing.T) (*queue.Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return queue.NewManager(client, zaptest.NewLogger(t)), mr
}

func TestEnqueue(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)
	ctx := t.Context()

	item := &queue.Item{
		SubmissionID: 42,
		Priority:     queue.NormalPriority,
		Reason:       "intake",
		RequestedBy:  7,
	}

	require.NoError(t, manager.Enqueue(ctx, item))
	assert.NotEmpty(t, item.JobID)
	assert.False(t, item.AddedAt.IsZero())
	assert.Equal(t, 1, manager.GetQueueLength(ctx, queue.NormalPriority))

	status, err := manager.GetStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusQueued, status)
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)
	ctx := t.Context()

	require.NoError(t, manager.Enqueue(ctx, &queue.Item{SubmissionID: 1, Priority: queue.NormalPriority}))

	err := manager.Enqueue(ctx, &queue.Item{SubmissionID: 1, Priority: queue.HighPriority})
	require.ErrorIs(t, err, queue.ErrAlreadyQueued)
	assert.Equal(t, 1, manager.GetTotalLength(ctx))
}

func TestEnqueueInvalidPriority(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)

	err := manager.Enqueue(t.Context(), &queue.Item{SubmissionID: 1, Priority: "urgent"})
	require.ErrorIs(t, err, queue.ErrInvalidPriority)

	status, err := manager.GetStatus(t.Context(), 1)
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestPopOrdering(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)
	ctx := t.Context()

	base := time.Now().Add(-time.Hour)
	items := []*queue.Item{
		{SubmissionID: 1, Priority: queue.LowPriority, AddedAt: base},
		{SubmissionID: 2, Priority: queue.NormalPriority, AddedAt: base.Add(2 * time.Minute)},
		{SubmissionID: 3, Priority: queue.NormalPriority, AddedAt: base.Add(time.Minute)},
		{SubmissionID: 4, Priority: queue.HighPriority, AddedAt: base.Add(5 * time.Minute)},
	}
	for _, item := range items {
		require.NoError(t, manager.Enqueue(ctx, item))
	}

	popped, err := manager.Pop(ctx, 3)
	require.NoError(t, err)
	require.Len(t, popped, 3)

	ids := make([]int64, 0, len(popped))
	for _, item := range popped {
		ids = append(ids, item.SubmissionID)
	}
	assert.Equal(t, []int64{4, 3, 2}, ids)
	assert.Equal(t, 1, manager.GetTotalLength(ctx))

	status, err := manager.GetStatus(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusProcessing, status)
}

func TestPopEmpty(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)

	popped, err := manager.Pop(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, popped)
}

func TestPopSkipsMalformedItems(t *testing.T) {
	t.Parallel()
	manager, mr := setupTest(t)
	ctx := t.Context()

	_, err := mr.ZAdd(queue.QueueKey(queue.NormalPriority), 1, "not json")
	require.NoError(t, err)
	require.NoError(t, manager.Enqueue(ctx, &queue.Item{SubmissionID: 9, Priority: queue.NormalPriority}))

	popped, err := manager.Pop(ctx, 5)
	require.NoError(t, err)
	require.Len(t, popped, 1)
	assert.Equal(t, int64(9), popped[0].SubmissionID)
}

func TestCompleteAllowsRequeue(t *testing.T) {
	t.Parallel()
	manager, _ := setupTest(t)
	ctx := t.Context()

	require.NoError(t, manager.Enqueue(ctx, &queue.Item{SubmissionID: 5, Priority: queue.NormalPriority}))
	_, err := manager.Pop(ctx, 1)
	require.NoError(t, err)

	manager.Complete(ctx, 5)

	status, err := manager.GetStatus(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, status)
	require.NoError(t, manager.Enqueue(ctx, &queue.Item{SubmissionID: 5, Priority: queue.HighPriority}))
}
