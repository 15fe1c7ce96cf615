package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Listings and owner history
			CREATE INDEX IF NOT EXISTS idx_submissions_kind_status_created
			ON submissions (kind, status, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_submissions_user_created
			ON submissions (user_id, created_at DESC);

			-- Recovery scans for jobs stuck before completion
			CREATE INDEX IF NOT EXISTS idx_submissions_analysis_pending
			ON submissions (analysis_status, updated_at)
			WHERE analysis_status IN ('pending', 'analyzing');

			-- Leaderboard aggregation over approved rewards
			CREATE INDEX IF NOT EXISTS idx_submissions_rewards_approved
			ON submissions (created_at, user_id)
			INCLUDE (rewards_points, analysis_accuracy, category)
			WHERE rewards_status = 'approved';

			-- Approved rewards that never reached the ledger
			CREATE INDEX IF NOT EXISTS idx_submissions_uncredited
			ON submissions (updated_at)
			WHERE rewards_status = 'approved' AND rewards_credited_at IS NULL;

			-- Map view
			CREATE INDEX IF NOT EXISTS idx_submissions_location
			ON submissions (latitude, longitude)
			WHERE kind = 'report' AND latitude IS NOT NULL;

			-- User rank
			CREATE INDEX IF NOT EXISTS idx_users_total_points
			ON users (total_points DESC, created_at ASC);

			CREATE INDEX IF NOT EXISTS idx_ledger_entries_user
			ON ledger_entries (user_id);

			CREATE INDEX IF NOT EXISTS idx_submission_flags_submission
			ON submission_flags (submission_id);

			CREATE INDEX IF NOT EXISTS idx_activity_logs_submission
			ON activity_logs (submission_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_activity_logs_created
			ON activity_logs (created_at DESC);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_submissions_kind_status_created;
			DROP INDEX IF EXISTS idx_submissions_user_created;
			DROP INDEX IF EXISTS idx_submissions_analysis_pending;
			DROP INDEX IF EXISTS idx_submissions_rewards_approved;
			DROP INDEX IF EXISTS idx_submissions_uncredited;
			DROP INDEX IF EXISTS idx_submissions_location;
			DROP INDEX IF EXISTS idx_users_total_points;
			DROP INDEX IF EXISTS idx_ledger_entries_user;
			DROP INDEX IF EXISTS idx_submission_flags_submission;
			DROP INDEX IF EXISTS idx_activity_logs_submission;
			DROP INDEX IF EXISTS idx_activity_logs_created;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
