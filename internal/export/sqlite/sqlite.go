package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mangrovewatch/mangrove/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Filename is the database written by the exporter.
const Filename = "leaderboard.db"

const batchSize = 1000

const schema = `
CREATE TABLE leaderboard (
	rank INTEGER PRIMARY KEY,
	user_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	location TEXT NOT NULL,
	total_points INTEGER NOT NULL,
	submission_count INTEGER NOT NULL,
	average_accuracy REAL NOT NULL
);
CREATE TABLE submissions (
	id INTEGER PRIMARY KEY,
	user_hash TEXT NOT NULL,
	kind TEXT NOT NULL,
	category TEXT NOT NULL,
	incident_type TEXT,
	title TEXT,
	description TEXT NOT NULL,
	latitude REAL,
	longitude REAL,
	points INTEGER NOT NULL,
	accuracy INTEGER NOT NULL,
	approved_at TEXT
);
CREATE INDEX idx_submissions_user_hash ON submissions (user_hash);
`

// Exporter writes the export to a SQLite database.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes the leaderboard and submissions tables to Filename, replacing any existing file.
func (e *Exporter) Export(leaderboard []*types.LeaderboardRecord, submissions []*types.SubmissionRecord) error {
	path := filepath.Join(e.outDir, Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing file %s: %w", Filename, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	err = insertBatches(conn, leaderboard,
		`INSERT INTO leaderboard (rank, user_hash, name, role, location, total_points, submission_count, average_accuracy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		func(r *types.LeaderboardRecord) []any {
			return []any{
				r.Rank, r.UserHash, r.Name, r.Role, r.Location,
				r.TotalPoints, r.SubmissionCount, r.AverageAccuracy,
			}
		})
	if err != nil {
		return fmt.Errorf("failed to export leaderboard: %w", err)
	}

	err = insertBatches(conn, submissions,
		`INSERT INTO submissions (id, user_hash, kind, category, incident_type, title, description,
			latitude, longitude, points, accuracy, approved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(r *types.SubmissionRecord) []any {
			return []any{
				r.ID, r.UserHash, r.Kind, r.Category, nullable(r.IncidentType), nullable(r.Title), r.Description,
				floatOrNil(r.Latitude), floatOrNil(r.Longitude), r.Points, r.Accuracy, timeOrNil(r.ApprovedAt),
			}
		})
	if err != nil {
		return fmt.Errorf("failed to export submissions: %w", err)
	}

	return nil
}

// insertBatches inserts records in transactions of batchSize rows.
func insertBatches[T any](conn *sqlite.Conn, records []T, query string, args func(T) []any) error {
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		if err := insertBatch(conn, records[i:end], query, args); err != nil {
			return err
		}
	}

	return nil
}

func insertBatch[T any](conn *sqlite.Conn, batch []T, query string, args func(T) []any) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endFn(&err)

	for _, record := range batch {
		if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args(record)}); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
