// Package queue stores analysis jobs in Redis sorted sets, one per priority level.
// Jobs are ordered by the time they were added and popped atomically with ZPOPMIN.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// HighPriority jobs are popped before all others. Used for admin re-analysis.
	HighPriority = "high"
	// NormalPriority is used for jobs created at intake.
	NormalPriority = "normal"
	// LowPriority is used by the recovery worker.
	LowPriority = "low"

	// StatusQueued indicates the job is waiting in a priority set.
	StatusQueued = "Queued"
	// StatusProcessing indicates a worker popped the job.
	StatusProcessing = "Processing"

	// JobStatusPrefix namespaces the per-submission marker keys.
	// Keys are formatted as "queue_status:{submissionID}".
	JobStatusPrefix = "queue_status:"

	// JobStatusExpiry bounds how long a marker survives a crashed worker.
	JobStatusExpiry = 30 * time.Minute
)

// Priorities lists the priority levels in the order they are drained.
var Priorities = []string{HighPriority, NormalPriority, LowPriority}

// Item is a queued analysis job.
type Item struct {
	JobID        string    `json:"jobId"`
	SubmissionID int64     `json:"submissionId"`
	Priority     string    `json:"priority"`
	Reason       string    `json:"reason"`
	RequestedBy  int64     `json:"requestedBy"`
	AddedAt      time.Time `json:"addedAt"`
}

// Manager performs queue operations against a single Redis database.
type Manager struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewManager creates a queue manager.
func NewManager(client rueidis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger.Named("queue"),
	}
}

// QueueKey returns the sorted set key for a priority level.
func QueueKey(priority string) string {
	return fmt.Sprintf("queue:%s_priority", priority)
}

// Enqueue adds an analysis job for a submission. A submission can only have one job
// waiting or running at a time; a second call returns ErrAlreadyQueued.
func (m *Manager) Enqueue(ctx context.Context, item *Item) error {
	if !isValidPriority(item.Priority) {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, item.Priority)
	}

	if item.JobID == "" {
		item.JobID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}

	// Claim the per-submission marker first so duplicates never reach the set
	statusKey := statusKey(item.SubmissionID)
	err := m.client.Do(ctx,
		m.client.B().Set().Key(statusKey).Value(StatusQueued).Nx().Ex(JobStatusExpiry).Build(),
	).Error()
	if rueidis.IsRedisNil(err) {
		return ErrAlreadyQueued
	}
	if err != nil {
		return fmt.Errorf("failed to mark submission as queued: %w", err)
	}

	itemJSON, err := sonic.Marshal(item)
	if err != nil {
		m.release(ctx, item.SubmissionID)
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}

	err = m.client.Do(ctx,
		m.client.B().Zadd().Key(QueueKey(item.Priority)).ScoreMember().
			ScoreMember(float64(item.AddedAt.UnixMilli()), string(itemJSON)).Build(),
	).Error()
	if err != nil {
		m.release(ctx, item.SubmissionID)
		return fmt.Errorf("failed to add item to queue: %w", err)
	}

	m.logger.Debug("Queued analysis job",
		zap.Int64("submissionID", item.SubmissionID),
		zap.String("priority", item.Priority),
		zap.String("reason", item.Reason))

	return nil
}

// Pop removes up to batchSize jobs, draining high priority before normal and low.
// Popped jobs are marked as processing until Complete is called.
func (m *Manager) Pop(ctx context.Context, batchSize int) ([]*Item, error) {
	items := make([]*Item, 0, batchSize)

	for _, priority := range Priorities {
		remaining := batchSize - len(items)
		if remaining <= 0 {
			break
		}

		scores, err := m.client.Do(ctx,
			m.client.B().Zpopmin().Key(QueueKey(priority)).Count(int64(remaining)).Build(),
		).AsZScores()
		if err != nil && !rueidis.IsRedisNil(err) {
			return items, fmt.Errorf("failed to pop %s priority jobs: %w", priority, err)
		}

		for _, score := range scores {
			var item Item
			if err := sonic.UnmarshalString(score.Member, &item); err != nil {
				m.logger.Error("Dropping malformed queue item",
					zap.String("priority", priority),
					zap.String("member", score.Member),
					zap.Error(err))
				continue
			}

			m.markProcessing(ctx, item.SubmissionID)
			items = append(items, &item)
		}
	}

	return items, nil
}

// Complete releases the marker for a submission so it can be queued again.
func (m *Manager) Complete(ctx context.Context, submissionID int64) {
	m.release(ctx, submissionID)
}

// GetStatus returns the marker status for a submission, or an empty string when
// the submission has no job.
func (m *Manager) GetStatus(ctx context.Context, submissionID int64) (string, error) {
	status, err := m.client.Do(ctx, m.client.B().Get().Key(statusKey(submissionID)).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get job status: %w", err)
	}

	return status, nil
}

// GetQueueLength returns the number of waiting jobs at a priority level.
func (m *Manager) GetQueueLength(ctx context.Context, priority string) int {
	count, err := m.client.Do(ctx, m.client.B().Zcard().Key(QueueKey(priority)).Build()).ToInt64()
	if err != nil {
		m.logger.Error("Failed to get queue length", zap.String("priority", priority), zap.Error(err))
		return 0
	}

	return int(count)
}

// GetTotalLength returns the number of waiting jobs across all priorities.
func (m *Manager) GetTotalLength(ctx context.Context) int {
	total := 0
	for _, priority := range Priorities {
		total += m.GetQueueLength(ctx, priority)
	}

	return total
}

func (m *Manager) markProcessing(ctx context.Context, submissionID int64) {
	err := m.client.Do(ctx,
		m.client.B().Set().Key(statusKey(submissionID)).Value(StatusProcessing).Ex(JobStatusExpiry).Build(),
	).Error()
	if err != nil {
		m.logger.Warn("Failed to mark job as processing", zap.Int64("submissionID", submissionID), zap.Error(err))
	}
}

func (m *Manager) release(ctx context.Context, submissionID int64) {
	err := m.client.Do(ctx, m.client.B().Del().Key(statusKey(submissionID)).Build()).Error()
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Failed to release job marker", zap.Int64("submissionID", submissionID), zap.Error(err))
	}
}

func statusKey(submissionID int64) string {
	return JobStatusPrefix + strconv.FormatInt(submissionID, 10)
}

func isValidPriority(priority string) bool {
	switch priority {
	case HighPriority, NormalPriority, LowPriority:
		return true
	default:
		return false
	}
}
