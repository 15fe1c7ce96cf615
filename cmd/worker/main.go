package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/mangrovewatch/mangrove/internal/progress"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry"
	"github.com/mangrovewatch/mangrove/internal/worker/analysis"
	"github.com/mangrovewatch/mangrove/internal/worker/recovery"
	"github.com/mangrovewatch/mangrove/internal/worker/stats"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// AnalysisWorker runs queued submissions through the classification pipeline.
	AnalysisWorker = "analysis"

	// RecoveryWorker re-queues stuck analyses and credits missed rewards.
	RecoveryWorker = "recovery"

	// StatsWorker handles statistics snapshots and charts.
	StatsWorker = "stats"

	restartDelay = 5 * time.Second
)

// Runner is a worker loop that returns once its context is cancelled.
type Runner interface {
	Start(ctx context.Context)
}

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	workerCommand := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(ctx context.Context, c *cli.Command) error {
				return runWorkers(ctx, name, c.Int("workers"), c.Bool("no-progress"))
			},
		}
	}

	app := &cli.Command{
		Name:  "worker",
		Usage: "Start mangrove workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   1,
				Usage:   "Number of workers to start",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable terminal progress bars",
			},
		},
		Commands: []*cli.Command{
			workerCommand(AnalysisWorker, "Start analysis workers"),
			workerCommand(RecoveryWorker, "Start recovery workers"),
			workerCommand(StatsWorker, "Start statistics worker"),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, os.Args)
}

// runWorkers starts count instances of a worker type and waits for them to stop.
func runWorkers(ctx context.Context, workerType string, count int64, noProgress bool) error {
	if count < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", count)
	}

	app, err := setup.InitializeApp(ctx, telemetry.ServiceWorker, WorkerLogDir, workerType, "main")
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.WithoutCancel(ctx))

	// Optional startup delay so workers do not stampede after a deploy
	if delay := app.Config.Worker.StartupDelay; delay > 0 {
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}

	bars := make([]*progress.Bar, count)
	for i := range count {
		bars[i] = progress.NewBar(25, fmt.Sprintf("%s %d", workerType, i))
	}

	renderCtx, stopRender := context.WithCancel(ctx)
	defer stopRender()

	if !noProgress {
		go progress.NewRenderer(bars).Render(renderCtx)
	}

	var wg sync.WaitGroup
	for i := range count {
		workerID := strconv.FormatInt(i, 10)
		workerLogger := app.LogManager.GetWorkerLogger(fmt.Sprintf("%s_worker_%s", workerType, workerID))

		w, err := newWorker(app, workerType, bars[i], workerID, workerLogger)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, w, workerLogger)
		}()
	}

	app.Logger.Info("Started workers", zap.String("type", workerType), zap.Int64("count", count))
	wg.Wait()
	app.Logger.Info("All workers have finished")

	return nil
}

func newWorker(app *setup.App, workerType string, bar *progress.Bar, workerID string, logger *zap.Logger) (Runner, error) {
	// Worker IDs must be unique across processes sharing the status database
	instanceID := app.LogManager.GetInstanceID() + "-" + workerID

	switch workerType {
	case AnalysisWorker:
		return analysis.New(app, bar, instanceID, logger), nil
	case RecoveryWorker:
		return recovery.New(app, bar, instanceID, logger), nil
	case StatsWorker:
		return stats.New(app, bar, instanceID, logger)
	default:
		return nil, fmt.Errorf("invalid worker type: %s", workerType)
	}
}

// runWorker runs a single worker and restarts it after a panic.
func runWorker(ctx context.Context, w Runner, logger *zap.Logger) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker execution failed",
						zap.String("worker_type", fmt.Sprintf("%T", w)),
						zap.Any("panic", r))
				}
			}()

			logger.Info("Starting worker")
			w.Start(ctx)
		}()

		if ctx.Err() != nil {
			return
		}

		logger.Warn("Worker stopped unexpectedly, restarting", zap.Duration("delay", restartDelay))

		select {
		case <-ctx.Done():
		case <-time.After(restartDelay):
		}
	}
}
