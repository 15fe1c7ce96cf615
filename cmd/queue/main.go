package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/queue"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// QueueLogDir specifies where queue log files are stored.
	QueueLogDir = "logs/queue_logs"

	// ManualReason is recorded on jobs queued from this tool.
	ManualReason = "manual"
)

var (
	// ErrNoSuitableEditor indicates no suitable editor was found on the system.
	ErrNoSuitableEditor = errors.New("no suitable editor found")
	// ErrUnsupportedOS indicates the operating system is not supported.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrInvalidPriority indicates the --priority flag is not a known level.
	ErrInvalidPriority = errors.New("invalid priority")
)

// Submissions queues analysis jobs for existing submissions.
type Submissions interface {
	Get(ctx context.Context, id int64) (*types.Submission, error)
	SubmitForAnalysis(ctx context.Context, submissionID int64, priority, reason string, requestedBy int64) error
}

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "queue",
		Usage: "Queue mangrove submissions for analysis",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Queue submissions given as arguments, a file, or an editor session",
				ArgsUsage: "[submission IDs...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "priority",
						Value: queue.HighPriority,
						Usage: "Queue priority (high, normal, low)",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read submission IDs from a file instead of opening an editor",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					priority := c.String("priority")
					if !slices.Contains(queue.Priorities, priority) {
						return fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
					}

					ids, err := collectIDs(ctx, c.Args().Slice(), c.String("file"))
					if err != nil {
						return err
					}

					if len(ids) == 0 {
						fmt.Println("No valid submission IDs found.")
						return nil
					}

					app, err := setup.InitializeApp(ctx, telemetry.ServiceQueue, QueueLogDir)
					if err != nil {
						return fmt.Errorf("failed to initialize application: %w", err)
					}
					defer app.Cleanup(ctx)

					fmt.Printf("Found %d submission IDs to queue.\n", len(ids))

					queued, failed := queueSubmissions(
						ctx, app.DB.Service().Submission(), ids, priority, app.Logger.Named("queue_cli"),
					)

					fmt.Printf("Successfully queued %d submissions.\n", queued)
					if failed > 0 {
						fmt.Printf("Failed to queue %d submissions (see logs for details).\n", failed)
					}

					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "Show queue lengths per priority",
				Action: func(ctx context.Context, _ *cli.Command) error {
					app, err := setup.InitializeApp(ctx, telemetry.ServiceQueue, QueueLogDir)
					if err != nil {
						return fmt.Errorf("failed to initialize application: %w", err)
					}
					defer app.Cleanup(ctx)

					for _, priority := range queue.Priorities {
						fmt.Printf("%-8s %d\n", priority, app.Queue.GetQueueLength(ctx, priority))
					}

					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// collectIDs reads IDs from arguments, a file, or a temporary file opened in an editor.
func collectIDs(ctx context.Context, args []string, file string) ([]int64, error) {
	if len(args) > 0 {
		ids, invalid := parseIDs(args)
		printInvalid(invalid)
		return ids, nil
	}

	if file == "" {
		tempFile, err := createTempFileWithInstructions()
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary file: %w", err)
		}
		defer os.Remove(tempFile)

		fmt.Printf("Created temporary file: %s\n", tempFile)
		fmt.Println("Please add submission IDs to the file (one per line).")
		fmt.Println("Press Enter when you're done editing the file...")

		if err := openFileInEditor(ctx, tempFile); err != nil {
			fmt.Printf("Warning: Could not open file in editor: %v\n", err)
			fmt.Println("Please manually edit the file and press Enter when done.")
		}

		_, _ = fmt.Scanln()

		file = tempFile
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	ids, invalid, err := readIDs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read submission IDs: %w", err)
	}
	printInvalid(invalid)

	return ids, nil
}

// queueSubmissions queues each existing submission and counts the outcomes.
func queueSubmissions(
	ctx context.Context, submissions Submissions, ids []int64, priority string, logger *zap.Logger,
) (int, int) {
	var queued, failed int

	for i, id := range ids {
		if _, err := submissions.Get(ctx, id); err != nil {
			failed++
			if errors.Is(err, types.ErrSubmissionNotFound) {
				logger.Warn("Skipping unknown submission", zap.Int64("submissionID", id))
			} else {
				logger.Error("Failed to load submission", zap.Int64("submissionID", id), zap.Error(err))
			}
			continue
		}

		if err := submissions.SubmitForAnalysis(ctx, id, priority, ManualReason, 0); err != nil {
			failed++
			logger.Error("Failed to queue submission", zap.Int64("submissionID", id), zap.Error(err))
			continue
		}

		queued++

		if (i+1)%100 == 0 {
			fmt.Printf("Processed %d/%d\n", i+1, len(ids))
		}
	}

	return queued, failed
}

func printInvalid(invalid []string) {
	if len(invalid) == 0 {
		return
	}

	fmt.Printf("Warning: Found %d invalid entries:\n", len(invalid))
	for _, entry := range invalid {
		fmt.Printf("  - %s\n", entry)
	}
	fmt.Println()
}

// createTempFileWithInstructions creates a temporary file with instructions for the user.
func createTempFileWithInstructions() (string, error) {
	tempFile := filepath.Join(os.TempDir(), fmt.Sprintf("mangrove_queue_%d.txt", time.Now().Unix()))

	instructions := `# Mangrove Analysis Queue File
#
# Instructions:
# - Add one submission ID per line
# - You can use numeric IDs (e.g., 42) or API URLs (e.g., https://api.example.org/v1/reports/42)
# - Lines starting with # are comments and will be ignored
# - Empty lines will be ignored
#
# Add your submission IDs below this line:

`

	if err := os.WriteFile(tempFile, []byte(instructions), 0o600); err != nil {
		return "", err
	}

	return tempFile, nil
}

// openFileInEditor tries to open the file in the system's default text editor.
func openFileInEditor(ctx context.Context, filename string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "notepad", filename)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-t", filename)
	case "linux":
		if editor := os.Getenv("EDITOR"); editor != "" {
			cmd = exec.CommandContext(ctx, editor, filename)
			break
		}

		for _, editor := range []string{"nano", "vim", "vi"} {
			if _, err := exec.LookPath(editor); err == nil {
				cmd = exec.CommandContext(ctx, editor, filename)
				break
			}
		}

		if cmd == nil {
			return ErrNoSuitableEditor
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
	}

	return cmd.Start()
}
