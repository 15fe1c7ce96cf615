package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLoggers(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	manager := telemetry.NewManager(telemetry.ServiceWorker, logDir, &config.Debug{
		LogLevel:      "debug",
		MaxLogsToKeep: 3,
		MaxLogLines:   100,
	}, "analysis", "1")
	defer manager.Stop(t.Context())

	mainLogger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("started")
	dbLogger.Info("connected")
	manager.GetWorkerLogger("analysis_worker").Info("processing")

	sessionDir := manager.GetCurrentSessionDir()
	for _, name := range []string{"main.log", "database.log", "analysis_worker.log"} {
		info, err := os.Stat(filepath.Join(sessionDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	assert.NotEmpty(t, manager.GetInstanceID())
}

func TestManagerRotatesSessions(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	for i, name := range []string{"2024-01-01_00-00-00", "2024-01-02_00-00-00", "2024-01-03_00-00-00"} {
		dir := filepath.Join(logDir, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))

		modTime := time.Now().Add(-time.Duration(10-i) * time.Hour)
		require.NoError(t, os.Chtimes(dir, modTime, modTime))
	}

	manager := telemetry.NewManager(telemetry.ServiceAPI, logDir, &config.Debug{
		LogLevel:      "info",
		MaxLogsToKeep: 2,
	}, "", "")
	defer manager.Stop(t.Context())

	_, _, err := manager.GetLoggers()
	require.NoError(t, err)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = os.Stat(filepath.Join(logDir, "2024-01-01_00-00-00"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(logDir, "2024-01-02_00-00-00"))
	assert.True(t, os.IsNotExist(err))
}
