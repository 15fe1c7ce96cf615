package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// SystemStatsView is the materialized view holding dashboard counters.
const SystemStatsView = "system_stats"

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		query := fmt.Sprintf(`
			CREATE MATERIALIZED VIEW IF NOT EXISTS %[1]s AS
			SELECT
				1 AS id,
				(SELECT COUNT(*) FROM users) AS total_users,
				COUNT(*) FILTER (WHERE kind = 'report') AS total_reports,
				COUNT(*) FILTER (WHERE kind = 'report' AND status IN ('validated', 'resolved')) AS validated_reports,
				COUNT(*) FILTER (WHERE kind = 'upload') AS total_uploads,
				COUNT(*) FILTER (WHERE kind = 'upload' AND status = 'approved') AS approved_uploads,
				COUNT(*) FILTER (WHERE analysis_status IN ('pending', 'analyzing')) AS pending_analyses,
				COUNT(*) FILTER (WHERE analysis_status = 'failed') AS failed_analyses,
				(SELECT COALESCE(SUM(points), 0) FROM ledger_entries) AS points_credited
			FROM submissions;

			CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_id ON %[1]s (id);
		`, SystemStatsView)

		_, err := db.NewRaw(query).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create materialized view %s: %w", SystemStatsView, err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(fmt.Sprintf(`
			DROP INDEX IF EXISTS idx_%[1]s_id;
			DROP MATERIALIZED VIEW IF EXISTS %[1]s;
		`, SystemStatsView)).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop materialized view %s: %w", SystemStatsView, err)
		}

		return nil
	})
}
