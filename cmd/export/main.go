package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/service"
	"github.com/mangrovewatch/mangrove/internal/export"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

// ExportLogDir specifies where export log files are stored.
const ExportLogDir = "logs/export_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := &cli.Command{
		Name:  "export",
		Usage: "Write the all-time leaderboard and approved submissions to SQLite and CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "exports", Usage: "Directory that receives one timestamped folder per run"},
			&cli.StringFlag{Name: "salt", Aliases: []string{"s"}, Usage: "Salt mixed into pseudonymous user IDs"},
			&cli.StringFlag{Name: "export-version", Aliases: []string{"v"}, Usage: "Version recorded in the export metadata"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description recorded in the export metadata"},
			&cli.StringFlag{Name: "hash-type", Aliases: []string{"t"}, Usage: "Pseudonymization hash (argon2id or sha256)"},
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"c"}, Value: 1, Usage: "Parallel hash workers"},
			&cli.UintFlag{Name: "iterations", Aliases: []string{"i"}, Usage: "Hash iterations"},
			&cli.UintFlag{Name: "memory", Aliases: []string{"m"}, Usage: "Argon2id memory in MB"},
		},
		Action: runExport,
	}

	return cmd.Run(context.Background(), os.Args)
}

func runExport(ctx context.Context, c *cli.Command) error {
	cfg := &export.Config{
		ExportVersion: c.String("export-version"),
		Salt:          c.String("salt"),
		Description:   c.String("description"),
		HashType:      c.String("hash-type"),
		Concurrency:   c.Int("concurrency"),
		Iterations:    uint32(c.Uint("iterations")), //nolint:gosec // flag values are small
		Memory:        uint32(c.Uint("memory")),     //nolint:gosec // flag values are small
	}

	// Settings are resolved before connecting so a bad answer costs nothing
	if err := newPrompter(os.Stdin, os.Stdout).complete(cfg); err != nil {
		return err
	}

	app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, ExportLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	now := time.Now()
	outDir := filepath.Join(c.String("output"), now.UTC().Format("2006-01-02_150405"))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	source := struct {
		*service.LeaderboardService
		*service.SubmissionService
	}{
		LeaderboardService: app.DB.Service().Leaderboard(),
		SubmissionService:  app.DB.Service().Submission(),
	}

	if err := export.New(source, outDir, cfg).ExportAll(ctx, now); err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}

	fmt.Printf("Export written to %s\n", outDir)

	return nil
}
