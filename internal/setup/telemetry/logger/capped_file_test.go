package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mangrovewatch/mangrove/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	t.Parallel()

	rb := logger.NewRingBuffer(3)
	assert.Nil(t, rb.Lines())

	for i := range 5 {
		rb.Add(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, rb.Lines())
}

func TestCappedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "worker.log")

	file, err := logger.OpenCappedFile(path, 5)
	require.NoError(t, err)

	for i := range 10 {
		_, err := fmt.Fprintf(file, "entry %d\n", i)
		require.NoError(t, err)
	}

	require.NoError(t, file.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, []string{"entry 5", "entry 6", "entry 7", "entry 8", "entry 9"}, lines)
}

func TestCappedFileUnlimited(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")

	file, err := logger.OpenCappedFile(path, 0)
	require.NoError(t, err)

	for i := range 20 {
		_, err := fmt.Fprintf(file, "entry %d\n", i)
		require.NoError(t, err)
	}

	require.NoError(t, file.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(content)), "\n"), 20)
}
