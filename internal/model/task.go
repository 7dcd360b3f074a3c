package model

import (
	"time"
)

// TaskKind identifies the kind of a background task. The supervisor keeps
// one slot per kind.
type TaskKind string

const (
	TaskKindCopy    TaskKind = "copy"
	TaskKindProcess TaskKind = "process"
)

// TaskStatus represents the state of a recorded task run.
type TaskStatus string

const (
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// CopyTask are the parameters of a staging copy. Immutable once the worker starts.
type CopyTask struct {
	SourceDir string `json:"source_dir"`
	DestDir   string `json:"dest_dir"`
	// Extension is the accepted file extension (e.g. ".bmp"), matched case-insensitively.
	Extension string `json:"extension"`
}

// ProcessTask are the parameters of an external process run. Immutable once the worker starts.
type ProcessTask struct {
	Command    []string `json:"command"`
	ReportPath string   `json:"report_path"`
	// ExpectedUnits is the progress denominator, 0 means progress is unknown.
	ExpectedUnits int `json:"expected_units"`
	// Marker is the output substring that denotes one completed unit.
	Marker string `json:"marker"`
	// Env are extra environment variables of the process.
	Env map[string]string `json:"env,omitempty"`
}

// TaskRun is the recorded history of a single task execution.
type TaskRun struct {
	ID         string
	Kind       TaskKind
	Status     TaskStatus
	Progress   int
	Params     string
	Result     string
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}
