package migrations

import (
	"context"
	"fmt"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	models := []any{
		(*types.User)(nil),
		(*types.Submission)(nil),
		(*types.LedgerEntry)(nil),
		(*types.SubmissionFlag)(nil),
		(*types.ActivityLog)(nil),
		(*types.HourlyStats)(nil),
		(*types.MaterializedViewRefresh)(nil),
	}

	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		// Constraints bun cannot express through struct tags
		_, err := db.NewRaw(`
			ALTER TABLE users
				ADD CONSTRAINT users_total_points_non_negative CHECK (total_points >= 0);

			ALTER TABLE submissions
				ADD CONSTRAINT submissions_user_fk FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
				ADD CONSTRAINT submissions_latitude_range CHECK (latitude IS NULL OR latitude BETWEEN -90 AND 90),
				ADD CONSTRAINT submissions_longitude_range CHECK (longitude IS NULL OR longitude BETWEEN -180 AND 180),
				ADD CONSTRAINT submissions_accuracy_range CHECK (analysis_accuracy BETWEEN 0 AND 100),
				ADD CONSTRAINT submissions_confidence_range CHECK (analysis_confidence BETWEEN 0 AND 100),
				ADD CONSTRAINT submissions_points_range CHECK (rewards_points BETWEEN 0 AND 100);

			ALTER TABLE ledger_entries
				ADD CONSTRAINT ledger_entries_user_fk FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
				ADD CONSTRAINT ledger_entries_points_non_negative CHECK (points >= 0);

			ALTER TABLE submission_flags
				ADD CONSTRAINT submission_flags_submission_fk
					FOREIGN KEY (submission_id) REFERENCES submissions (id) ON DELETE CASCADE;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add constraints: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for i := len(models) - 1; i >= 0; i-- {
			_, err := db.NewDropTable().
				Model(models[i]).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", models[i], err)
			}
		}

		return nil
	})
}
