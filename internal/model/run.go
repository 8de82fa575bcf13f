package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPublished RunStatus = "published"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the bookkeeping record for one pipeline execution. A failed run
// keeps the previously published snapshot untouched.
type Run struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run: per-view row counts,
// data-quality counters, and the failing node when the run aborted.
type RunResult struct {
	ViewCounts map[string]int `json:"view_counts,omitempty"`
	Counters   Counters       `json:"counters"`
	FailedNode string         `json:"failed_node,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}
