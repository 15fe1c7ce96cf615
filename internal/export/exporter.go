// Package export writes the all-time leaderboard and approved submissions
// to SQLite and CSV files with pseudonymized user IDs.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	dbTypes "github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/export/csv"
	"github.com/mangrovewatch/mangrove/internal/export/sqlite"
	"github.com/mangrovewatch/mangrove/internal/export/types"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

const (
	// EngineVersion represents the version of the export engine.
	// This should be updated when making breaking changes to the export format.
	EngineVersion = "1.0.0"

	// PageSize is the number of approved submissions read per query.
	PageSize = 500

	// LeaderboardSize is the number of ranked users exported.
	LeaderboardSize = 100
)

// Config holds the configuration for exports.
type Config struct {
	ExportVersion string `json:"exportVersion"`
	Salt          string `json:"-"`
	Description   string `json:"description"`
	HashType      string `json:"hashType"`
	Iterations    uint32 `json:"iterations"`
	Memory        uint32 `json:"memory,omitempty"`
	Concurrency   int64  `json:"-"`
}

// Source reads the data to export.
type Source interface {
	GetLeaderboard(ctx context.Context, query dbTypes.LeaderboardQuery, now time.Time) ([]*dbTypes.LeaderboardEntry, error)
	GetApprovedAfter(ctx context.Context, cursor int64, limit int) ([]*dbTypes.Submission, error)
}

// Exporter handles exporting the leaderboard and approved submissions.
type Exporter struct {
	source  Source
	outDir  string
	config  *Config
	formats []Format
}

// New creates a new exporter instance.
func New(source Source, outDir string, config *Config) *Exporter {
	return &Exporter{
		source: source,
		outDir: outDir,
		config: config,
		formats: []Format{
			FormatSQLite,
			FormatCSV,
		},
	}
}

// ExportAll exports all data in all supported formats.
func (e *Exporter) ExportAll(ctx context.Context, now time.Time) error {
	// Print export configuration
	fmt.Printf("Starting export with configuration:\n")
	fmt.Printf("  Hash Type: %s\n", e.config.HashType)
	fmt.Printf("  Concurrency: %d workers\n", e.config.Concurrency)
	fmt.Printf("  Iterations: %d\n", e.config.Iterations)

	if e.config.HashType == string(HashTypeArgon2id) {
		fmt.Printf("  Memory: %d MB\n", e.config.Memory)
	}

	fmt.Printf("  Output Directory: %s\n", e.outDir)
	fmt.Printf("  Export Version: %s\n", e.config.ExportVersion)
	fmt.Printf("  Engine Version: %s\n", EngineVersion)
	fmt.Printf("  Description: %s\n\n", e.config.Description)

	fmt.Printf("Fetching data from database...\n")

	entries, err := e.source.GetLeaderboard(ctx, dbTypes.LeaderboardQuery{
		Window: enum.LeaderboardWindowAll,
		Limit:  LeaderboardSize,
	}, now)
	if err != nil {
		return fmt.Errorf("failed to get leaderboard: %w", err)
	}

	submissions, err := e.approvedSubmissions(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d ranked users and %d approved submissions to export\n\n", len(entries), len(submissions))

	fmt.Printf("Hashing user IDs...\n")

	ids := make([]int64, 0, len(entries)+len(submissions))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	for _, sub := range submissions {
		ids = append(ids, sub.UserID)
	}

	h := newHasher(e.config)
	h.hashAll(ids)

	leaderboard := leaderboardRecords(entries, h)
	approved := submissionRecords(submissions, h)

	fmt.Printf("Saving export configuration...\n")

	if err := e.writeConfig(now); err != nil {
		return err
	}

	fmt.Printf("Exporting data in %d formats...\n", len(e.formats))

	for _, format := range e.formats {
		fmt.Printf("  Writing %s format...\n", format)

		if err := e.export(format, leaderboard, approved); err != nil {
			return fmt.Errorf("failed to export %s format: %w", format, err)
		}
	}

	fmt.Printf("\nExport completed successfully\n")
	fmt.Printf("Files written to: %s\n", e.outDir)

	return nil
}

// approvedSubmissions pages through every approved submission by ID.
func (e *Exporter) approvedSubmissions(ctx context.Context) ([]*dbTypes.Submission, error) {
	var (
		all    []*dbTypes.Submission
		cursor int64
	)

	for {
		page, err := e.source.GetApprovedAfter(ctx, cursor, PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get approved submissions: %w", err)
		}

		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}

		cursor = page[len(page)-1].ID
	}
}

func (e *Exporter) writeConfig(now time.Time) error {
	jsonConfig := struct {
		*Config

		EngineVersion string    `json:"engineVersion"`
		ExportedAt    time.Time `json:"exportedAt"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
		ExportedAt:    now.UTC(),
	}

	configData, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(e.outDir, "export_config.json"), configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	return nil
}

func leaderboardRecords(entries []*dbTypes.LeaderboardEntry, h *hasher) []*types.LeaderboardRecord {
	records := make([]*types.LeaderboardRecord, len(entries))
	for i, entry := range entries {
		records[i] = &types.LeaderboardRecord{
			Rank:            entry.Rank,
			UserHash:        h.get(entry.UserID),
			Name:            entry.Name,
			Role:            string(entry.Role),
			Location:        entry.Location,
			TotalPoints:     entry.TotalPoints,
			SubmissionCount: entry.SubmissionCount,
			AverageAccuracy: entry.AverageAccuracy,
		}
	}
	return records
}

func submissionRecords(subs []*dbTypes.Submission, h *hasher) []*types.SubmissionRecord {
	records := make([]*types.SubmissionRecord, len(subs))
	for i, sub := range subs {
		records[i] = &types.SubmissionRecord{
			ID:           sub.ID,
			UserHash:     h.get(sub.UserID),
			Kind:         string(sub.Kind),
			Category:     string(sub.Category),
			IncidentType: string(sub.IncidentType),
			Title:        sub.Title,
			Description:  sub.Description,
			Latitude:     sub.Latitude,
			Longitude:    sub.Longitude,
			Points:       sub.Rewards.Points,
			Accuracy:     sub.Analysis.Accuracy,
			ApprovedAt:   sub.Rewards.ApprovedAt,
		}
	}
	return records
}

// export handles exporting data in the specified format.
func (e *Exporter) export(
	format Format, leaderboard []*types.LeaderboardRecord, submissions []*types.SubmissionRecord,
) error {
	var exporter interface {
		Export(leaderboard []*types.LeaderboardRecord, submissions []*types.SubmissionRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(leaderboard, submissions)
}
