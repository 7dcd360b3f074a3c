package lib

import (
	"errors"
	"time"

	"github.com/slok/mpifilter/internal/conventions"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/supervisor"
)

// --- Sentinel errors ---

var (
	// ErrNotFound is returned when a recorded run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a request or configuration is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNoValidImages is returned when the input directory has no image with the configured extension.
	ErrNoValidImages = errors.New("no valid images found")
	// ErrNothingCopied is returned when staging finished without copying any image.
	ErrNothingCopied = errors.New("could not copy images")
	// ErrPreflightFailed is returned when the processing deployment is not ready.
	ErrPreflightFailed = errors.New("preflight check failed")
	// ErrTaskRunning is returned when a task of the same kind is already running on the client.
	ErrTaskRunning = errors.New("task already running")
)

// --- Pipeline config ---

// PipelineConfig is the staging and processing deployment.
type PipelineConfig struct {
	// StagingDir is the directory images are staged into. It is wiped on every staging.
	StagingDir string
	// Extension is the accepted image extension (e.g. ".bmp"), matched case-insensitively.
	Extension string
	// Launcher is the MPI launcher binary (e.g. "mpiexec").
	Launcher string
	// Workers is the number of MPI processes.
	Workers int
	// Machinefile lists the MPI hosts.
	Machinefile string
	// WrapperScript is the script the launcher runs on every node.
	WrapperScript string
	// ReportPath is the report the processing program writes when it finishes.
	ReportPath string
	// Marker is the output substring printed once per processed unit.
	Marker string
	// UnitsPerImage is the number of units run on every staged image.
	UnitsPerImage int
	// KernelSize is the default filter kernel size.
	KernelSize int
	// Env are extra environment variables of the processing program.
	Env map[string]string
}

// DefaultPipelineConfig returns the configuration of the default processing deployment.
func DefaultPipelineConfig() PipelineConfig {
	return fromInternalPipelineConfig(conventions.DefaultPipelineConfig())
}

// --- Task types ---

// TaskKind identifies the kind of a task. A client runs one task per kind at a time.
type TaskKind string

const (
	// TaskKindCopy is the staging copy task.
	TaskKindCopy TaskKind = "copy"
	// TaskKindProcess is the MPI processing task.
	TaskKindProcess TaskKind = "process"
)

// TaskStatus is the state of a recorded task run.
type TaskStatus string

const (
	// TaskStatusRunning indicates the task has not finished yet.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the task finished successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task finished with an error.
	TaskStatusFailed TaskStatus = "failed"
)

// TaskRun is the recorded history of a single task execution.
type TaskRun struct {
	ID       string
	Kind     TaskKind
	Status   TaskStatus
	Progress int
	// Params is the JSON encoded task parameters.
	Params string
	// Result is the task result, plain text for process runs and JSON for copy runs.
	Result     string
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// Listener receives the progress of a running task. Both callbacks are
// optional and are called from the goroutine running the task.
type Listener struct {
	// OnLog receives every log line of the task.
	OnLog func(line string)
	// OnProgress receives the task progress percent, between 0 and 100.
	OnProgress func(percent int)
}

// --- Task options ---

// StageOpts are the options of [Client.Stage].
type StageOpts struct {
	// InputDir is the directory with the images to stage.
	InputDir string
	Listener *Listener
}

// StageResult is the result of [Client.Stage].
type StageResult struct {
	// Copied are the file names of the staged images, in copy order.
	Copied []string
}

// ProcessOpts are the options of [Client.Process].
type ProcessOpts struct {
	// KernelSize is the filter kernel size. 0 uses the configured one and
	// even values are bumped to the next odd value.
	KernelSize int
	// ExpectedUnits is the number of unit markers expected in the output.
	// Negative derives it from the staged images, 0 disables the progress.
	ExpectedUnits int
	Listener      *Listener
}

// ProcessResult is the result of [Client.Process].
type ProcessResult struct {
	// Command is the executed command line.
	Command       []string
	ExpectedUnits int
	// Summary is the report written by the processing program.
	Summary string
}

// PipelineOpts are the options of [Client.Pipeline].
type PipelineOpts struct {
	InputDir      string
	KernelSize    int
	ExpectedUnits int
	StageListener *Listener
	RunListener   *Listener
	// OnStaged is called with the staged images before processing starts.
	OnStaged func(copied []string)
}

// PipelineResult is the result of [Client.Pipeline].
type PipelineResult struct {
	Copied  []string
	Command []string
	Summary string
}

// HistoryOpts filters the runs returned by [Client.History].
type HistoryOpts struct {
	Kind   *TaskKind
	Status *TaskStatus
	// Limit is the max number of runs returned, 0 means no limit.
	Limit int
}

// --- Doctor types ---

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the check passed with a warning.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	// ID is a unique identifier for the check (e.g. "wrapper_script").
	ID string
	// Message is a human-readable description of the result.
	Message string
	// Status is the check status.
	Status CheckStatus
}

// --- Internal conversion helpers ---

func (p PipelineConfig) toInternal() model.PipelineConfig {
	return model.PipelineConfig{
		StagingDir:    p.StagingDir,
		Extension:     p.Extension,
		Launcher:      p.Launcher,
		Workers:       p.Workers,
		Machinefile:   p.Machinefile,
		WrapperScript: p.WrapperScript,
		ReportPath:    p.ReportPath,
		Marker:        p.Marker,
		UnitsPerImage: p.UnitsPerImage,
		KernelSize:    p.KernelSize,
		Env:           p.Env,
	}
}

func fromInternalPipelineConfig(p model.PipelineConfig) PipelineConfig {
	return PipelineConfig{
		StagingDir:    p.StagingDir,
		Extension:     p.Extension,
		Launcher:      p.Launcher,
		Workers:       p.Workers,
		Machinefile:   p.Machinefile,
		WrapperScript: p.WrapperScript,
		ReportPath:    p.ReportPath,
		Marker:        p.Marker,
		UnitsPerImage: p.UnitsPerImage,
		KernelSize:    p.KernelSize,
		Env:           p.Env,
	}
}

// toInternal returns a nil supervisor listener when there is no listener so
// the task events are dropped.
func (l *Listener) toInternal() supervisor.Listener {
	if l == nil {
		return nil
	}
	return supervisor.ListenerFuncs{
		Log:      l.OnLog,
		Progress: l.OnProgress,
	}
}

func fromInternalRun(r model.TaskRun) TaskRun {
	return TaskRun{
		ID:         r.ID,
		Kind:       TaskKind(r.Kind),
		Status:     TaskStatus(r.Status),
		Progress:   r.Progress,
		Params:     r.Params,
		Result:     r.Result,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
}

func fromInternalRuns(runs []model.TaskRun) []TaskRun {
	out := make([]TaskRun, len(runs))
	for i, r := range runs {
		out[i] = fromInternalRun(r)
	}
	return out
}

func toInternalKind(k *TaskKind) *model.TaskKind {
	if k == nil {
		return nil
	}
	kind := model.TaskKind(*k)
	return &kind
}

func toInternalStatus(s *TaskStatus) *model.TaskStatus {
	if s == nil {
		return nil
	}
	status := model.TaskStatus(*s)
	return &status
}

var sentinelErrors = []struct {
	internal error
	public   error
}{
	{model.ErrNotFound, ErrNotFound},
	{model.ErrNotValid, ErrNotValid},
	{model.ErrNoValidImages, ErrNoValidImages},
	{model.ErrNothingCopied, ErrNothingCopied},
	{model.ErrPreflightFailed, ErrPreflightFailed},
	{model.ErrTaskRunning, ErrTaskRunning},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, s := range sentinelErrors {
		if errors.Is(err, s.internal) {
			return &mappedError{original: err, sentinel: s.public}
		}
	}
	return err
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }

// --- Doctor conversion helpers ---

func fromInternalCheckResults(results []model.CheckResult) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return out
}
