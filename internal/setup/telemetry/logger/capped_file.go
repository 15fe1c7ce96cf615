package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CappedFile is a log file writer that keeps only the most recent lines.
// Once twice the limit has been written since the last compaction, the file is
// rewritten to hold just the buffered tail.
type CappedFile struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	buffer   *RingBuffer
	maxLines int
	written  int
}

// OpenCappedFile opens path for appending and caps it at maxLines.
// A non-positive maxLines disables compaction.
func OpenCappedFile(path string, maxLines int) (*CappedFile, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return &CappedFile{
		file:     file,
		path:     path,
		buffer:   NewRingBuffer(maxLines),
		maxLines: maxLines,
	}, nil
}

// Write implements io.Writer.
func (c *CappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.file.Write(p)
	if err != nil || c.maxLines <= 0 {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		c.buffer.Add(line)
		c.written++
	}

	if c.written >= c.maxLines*2 {
		if err := c.compact(); err != nil {
			return n, fmt.Errorf("failed to compact log file: %w", err)
		}
		c.written = c.buffer.Len()
	}

	return n, nil
}

// Sync flushes the underlying file.
func (c *CappedFile) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Sync()
}

// Close closes the underlying file.
func (c *CappedFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Close()
}

// compact replaces the file with the buffered tail through a temp file and rename.
func (c *CappedFile) compact() error {
	lines := c.buffer.Lines()
	if len(lines) == 0 {
		return nil
	}

	temp, err := os.CreateTemp(filepath.Dir(c.path), "compact-log-")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	if _, err := temp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}

	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	c.file.Close()

	if err := os.Rename(tempPath, c.path); err != nil {
		return err
	}

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	c.file = file

	return nil
}
