package export_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	dbTypes "github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/export"
	"github.com/mangrovewatch/mangrove/internal/export/csv"
	"github.com/mangrovewatch/mangrove/internal/export/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	submissions []*dbTypes.Submission
	cursors     []int64
	query       dbTypes.LeaderboardQuery
}

func (f *fakeSource) GetLeaderboard(
	_ context.Context, query dbTypes.LeaderboardQuery, _ time.Time,
) ([]*dbTypes.LeaderboardEntry, error) {
	f.query = query
	return []*dbTypes.LeaderboardEntry{
		{Rank: 1, UserID: 1, Name: "Ana", Role: enum.RoleCommunity, TotalPoints: 300},
		{Rank: 2, UserID: 2, Name: "Ben", Role: enum.RoleNGO, TotalPoints: 120},
	}, nil
}

func (f *fakeSource) GetApprovedAfter(_ context.Context, cursor int64, limit int) ([]*dbTypes.Submission, error) {
	f.cursors = append(f.cursors, cursor)

	var page []*dbTypes.Submission
	for _, sub := range f.submissions {
		if sub.ID > cursor && len(page) < limit {
			page = append(page, sub)
		}
	}
	return page, nil
}

func TestExportAll(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	for id := int64(1); id <= export.PageSize+3; id++ {
		source.submissions = append(source.submissions, &dbTypes.Submission{
			ID:       id,
			UserID:   1 + id%2,
			Kind:     enum.SubmissionKindUpload,
			Category: enum.CategoryMangroveConservation,
		})
	}

	dir := t.TempDir()
	config := &export.Config{
		ExportVersion: "1.0.0",
		Salt:          "pepper",
		HashType:      string(export.HashTypeSHA256),
		Iterations:    1,
		Concurrency:   4,
	}

	require.NoError(t, export.New(source, dir, config).ExportAll(t.Context(), time.Now()))

	assert.Equal(t, enum.LeaderboardWindowAll, source.query.Window)
	assert.Equal(t, []int64{0, export.PageSize}, source.cursors)

	assert.FileExists(t, filepath.Join(dir, sqlite.Filename))
	assert.FileExists(t, filepath.Join(dir, csv.LeaderboardFile))
	assert.FileExists(t, filepath.Join(dir, csv.SubmissionsFile))

	data, err := os.ReadFile(filepath.Join(dir, "export_config.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pepper")

	var saved map[string]any
	require.NoError(t, sonic.Unmarshal(data, &saved))
	assert.Equal(t, export.EngineVersion, saved["engineVersion"])

	// Raw user IDs never reach the files
	leaderboard, err := os.ReadFile(filepath.Join(dir, csv.LeaderboardFile))
	require.NoError(t, err)
	assert.Contains(t, string(leaderboard), export.HashID(1, "pepper", export.HashTypeSHA256, 1, 0))
}
