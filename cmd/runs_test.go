//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	t.Parallel()

	started := time.Date(2025, 8, 10, 9, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "run-1",
			Status:    model.RunStatusPublished,
			StartedAt: started,
			Result:    &model.RunResult{DurationMS: 1250},
		},
		{
			ID:        "run-2",
			Status:    model.RunStatusFailed,
			StartedAt: started.Add(time.Hour),
			Result:    &model.RunResult{FailedNode: "coverage", DurationMS: 80},
		},
		{
			ID:        "run-3",
			Status:    model.RunStatusRunning,
			StartedAt: started.Add(2 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "FAILED_NODE")
	assert.Contains(t, lines[1], "run-1")
	assert.Contains(t, lines[1], "published")
	assert.Contains(t, lines[1], "2025-08-10 09:30:00")
	assert.Contains(t, lines[1], "1250")
	assert.Contains(t, lines[2], "coverage")
	// A still-running record has no result yet.
	assert.Contains(t, lines[3], "running")
	assert.Contains(t, lines[3], "0")
}
