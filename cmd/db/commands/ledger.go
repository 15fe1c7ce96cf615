package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// LedgerCommands returns the points ledger maintenance commands.
func LedgerCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "recredit-audit",
			Usage: "Report users whose total points differ from their ledger entries",
			Description: `Compare every user's total_points with the sum of their ledger entries.
The check is read-only. It exits with an error when any mismatch is found.

Examples:
  db recredit-audit`,
			Action: handleAudit(deps),
		},
		{
			Name:  "credit-pending",
			Usage: "Credit approved submissions that never reached the ledger",
			Description: `Credit every approved submission without a ledger entry.
Each submission is credited at most once, so the command is safe to re-run.

Examples:
  db credit-pending                  # Credit up to 1000 submissions
  db credit-pending --batch-size 50  # Credit up to 50 submissions`,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "batch-size",
					Usage: "Maximum submissions to credit",
					Value: 1000,
				},
			},
			Action: handleCreditPending(deps),
		},
	}
}

// handleAudit handles the 'recredit-audit' command.
func handleAudit(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		mismatches, err := deps.DB.Service().Ledger().Audit(ctx)
		if err != nil {
			return fmt.Errorf("failed to audit ledger: %w", err)
		}

		if len(mismatches) == 0 {
			deps.Logger.Info("Ledger is consistent with user totals")
			return nil
		}

		printMismatches(mismatches)

		return fmt.Errorf("%w: %d users", ErrLedgerMismatches, len(mismatches))
	}
}

// handleCreditPending handles the 'credit-pending' command.
func handleCreditPending(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		limit := max(int(c.Int("batch-size")), 1)

		ids, err := deps.DB.Service().Submission().GetUncredited(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to get uncredited submissions: %w", err)
		}

		var credited int
		for _, id := range ids {
			result, err := deps.DB.Service().Ledger().CreditPoints(ctx, id, types.CreditSourceRecovery)
			if err != nil {
				deps.Logger.Error("Failed to credit submission", zap.Int64("submissionID", id), zap.Error(err))
				continue
			}

			if result.Credited {
				credited++
			}
		}

		deps.Logger.Info("Credited pending submissions",
			zap.Int("found", len(ids)),
			zap.Int("credited", credited))

		return nil
	}
}

func printMismatches(mismatches []*types.LedgerMismatch) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "USER\tEMAIL\tTOTAL\tLEDGER\tDIFF")
	for _, m := range mismatches {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%+d\n", m.UserID, m.Email, m.TotalPoints, m.LedgerSum, m.TotalPoints-m.LedgerSum)
	}
}
