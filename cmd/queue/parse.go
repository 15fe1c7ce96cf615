package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
)

var (
	// ErrEmptyLine indicates an empty line was provided.
	ErrEmptyLine = errors.New("empty line")
	// ErrInvalidSubmissionID indicates an invalid submission ID was provided.
	ErrInvalidSubmissionID = errors.New("invalid submission ID")
)

// readIDs parses one submission ID per line. Comments, blank lines and
// duplicates are skipped. Unparseable lines are returned with their line number.
func readIDs(r io.Reader) ([]int64, []string, error) {
	var (
		ids     []int64
		invalid []string
	)

	seen := make(map[int64]struct{})
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := parseID(line)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("line %d: %s", lineNum, line))
			continue
		}

		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}

		ids = append(ids, id)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return ids, invalid, nil
}

// parseIDs parses command-line arguments the same way as file lines.
func parseIDs(args []string) ([]int64, []string) {
	ids, invalid, _ := readIDs(strings.NewReader(strings.Join(args, "\n")))
	return ids, invalid
}

// parseID accepts a numeric ID or a URL whose last path segment is the ID.
func parseID(line string) (int64, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, ErrEmptyLine
	}

	raw := line
	if u, err := url.Parse(line); err == nil && u.Scheme != "" && u.Path != "" {
		raw = path.Base(strings.TrimSuffix(u.Path, "/"))
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSubmissionID, line)
	}

	return id, nil
}
