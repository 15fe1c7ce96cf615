package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mangrovewatch/mangrove/internal/export/types"
)

// Files written by the exporter.
const (
	LeaderboardFile = "leaderboard.csv"
	SubmissionsFile = "submissions.csv"
)

// Exporter writes the export to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes the leaderboard and submissions to separate csv files.
func (e *Exporter) Export(leaderboard []*types.LeaderboardRecord, submissions []*types.SubmissionRecord) error {
	// Remove existing files if they exist
	for _, file := range []string{LeaderboardFile, SubmissionsFile} {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	err := writeFile(filepath.Join(e.outDir, LeaderboardFile),
		[]string{"rank", "user_hash", "name", "role", "location", "total_points", "submission_count", "average_accuracy"},
		leaderboard,
		func(r *types.LeaderboardRecord) []string {
			return []string{
				strconv.Itoa(r.Rank),
				r.UserHash,
				r.Name,
				r.Role,
				r.Location,
				strconv.FormatInt(r.TotalPoints, 10),
				strconv.FormatInt(r.SubmissionCount, 10),
				fmt.Sprintf("%.2f", r.AverageAccuracy),
			}
		})
	if err != nil {
		return fmt.Errorf("failed to export leaderboard: %w", err)
	}

	err = writeFile(filepath.Join(e.outDir, SubmissionsFile),
		[]string{
			"id", "user_hash", "kind", "category", "incident_type", "title", "description",
			"latitude", "longitude", "points", "accuracy", "approved_at",
		},
		submissions,
		func(r *types.SubmissionRecord) []string {
			return []string{
				strconv.FormatInt(r.ID, 10),
				r.UserHash,
				r.Kind,
				r.Category,
				r.IncidentType,
				r.Title,
				r.Description,
				formatCoordinate(r.Latitude),
				formatCoordinate(r.Longitude),
				strconv.Itoa(r.Points),
				strconv.Itoa(r.Accuracy),
				formatTime(r.ApprovedAt),
			}
		})
	if err != nil {
		return fmt.Errorf("failed to export submissions: %w", err)
	}

	return nil
}

// writeFile writes a header and one row per record.
func writeFile[T any](path string, header []string, records []T, row func(T) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range records {
		if err := writer.Write(row(record)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func formatCoordinate(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 6, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
