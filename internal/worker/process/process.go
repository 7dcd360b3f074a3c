// Package process implements the external process supervision worker.
package process

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/slok/mpifilter/internal/conventions"
	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/progress"
	"github.com/slok/mpifilter/internal/utils/env"
	"github.com/slok/mpifilter/internal/worker"
)

const (
	// maxLineSize is the longest output line the worker accepts.
	maxLineSize = 1024 * 1024

	// ReportNotFound is the notice added to the summary when the report is missing.
	ReportNotFound = "report not found"
	// ReportHeading is the heading of the report contents in the summary.
	ReportHeading = "Total report:"
)

// WorkerConfig is the configuration for the process worker.
type WorkerConfig struct {
	Task model.ProcessTask
	// Dir is the working directory of the process, the current one if empty.
	Dir string
	// Estimator derives the progress from the output lines. Defaults to a
	// marker counter over the task marker and expected units.
	Estimator progress.Estimator
	// WaitDelay bounds how long the worker waits for the output pipes once the
	// process has exited. Defaults to conventions.DefaultProcessWaitDelay.
	WaitDelay time.Duration
	Logger    log.Logger
}

func (c *WorkerConfig) defaults() error {
	if len(c.Task.Command) == 0 || c.Task.Command[0] == "" {
		return fmt.Errorf("command is required")
	}
	if c.Task.ExpectedUnits < 0 {
		return fmt.Errorf("expected units can't be negative")
	}
	if c.Task.Marker == "" {
		c.Task.Marker = conventions.DefaultUnitMarker
	}
	if c.Estimator == nil {
		c.Estimator = progress.NewMarkerCounter(c.Task.Marker, c.Task.ExpectedUnits)
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = conventions.DefaultProcessWaitDelay
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "worker.Process"})
	return nil
}

// Worker runs an external command, streams its output as log lines and
// completes with a summary of the exit status, the captured standard error
// and the report file.
type Worker struct {
	task      model.ProcessTask
	dir       string
	estimator progress.Estimator
	waitDelay time.Duration
	logger    log.Logger
	guard     worker.StartGuard
}

// NewWorker returns a new process worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Don't share the command slice or the env map with the caller.
	cfg.Task.Command = append([]string(nil), cfg.Task.Command...)
	cfg.Task.Env = maps.Clone(cfg.Task.Env)

	return &Worker{
		task:      cfg.Task,
		dir:       cfg.Dir,
		estimator: cfg.Estimator,
		waitDelay: cfg.WaitDelay,
		logger:    cfg.Logger,
	}, nil
}

var _ worker.Worker = &Worker{}

func (w *Worker) Kind() model.TaskKind { return model.TaskKindProcess }

// Params returns the task the worker runs.
func (w *Worker) Params() any { return w.task }

func (w *Worker) Start() (<-chan model.Event, error) {
	if err := w.guard.Start(); err != nil {
		return nil, err
	}
	return worker.Go(w.logger, w.run), nil
}

func (w *Worker) run(s *worker.Stream[string]) {
	cmd := exec.Command(w.task.Command[0], w.task.Command[1:]...)
	cmd.Dir = w.dir
	cmd.WaitDelay = w.waitDelay
	if len(w.task.Env) > 0 {
		cmd.Env = env.Environ(w.task.Env)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.Fail(err)
		return
	}

	// Standard error is drained by exec in the background while we read
	// standard output, it's complete once Wait returns. A child left holding it
	// after the process exits is cut off after the wait delay.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	w.logger.Debugf("Starting process: %s", strings.Join(w.task.Command, " "))
	if err := cmd.Start(); err != nil {
		s.Fail(err)
		return
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		s.Log(line)

		if p, ok := w.estimator.Observe(line); ok {
			s.Progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		// We can't supervise it anymore, don't leave it running. Closing our
		// end of the pipe also stops any child still writing to it.
		_ = stdout.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		s.Fail(err)
		return
	}

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		exitErr := &exec.ExitError{}
		switch {
		case errors.Is(err, exec.ErrWaitDelay):
			w.logger.Warningf("Output pipes still open %s after the process exited, closed them", w.waitDelay)
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			s.Fail(err)
			return
		}
	}
	w.logger.Debugf("Process finished with exit code %d", exitCode)

	s.Complete(Summary(exitCode, stderr.String(), w.task.ReportPath))
}

// Summary composes the terminal summary of a finished process: a warning for a
// non-zero exit code, the standard error if any, and the report contents or a
// notice when the report doesn't exist.
func Summary(exitCode int, stderr, reportPath string) string {
	var b strings.Builder

	if exitCode != 0 {
		fmt.Fprintf(&b, "\nWarning: program exited with code %d\n", exitCode)
	}

	if s := strings.TrimSpace(stderr); s != "" {
		fmt.Fprintf(&b, "\nWarning: STDERR:\n%s\n", s)
	}

	data, err := os.ReadFile(reportPath)
	switch {
	case err == nil:
		fmt.Fprintf(&b, "\n%s\n%s", ReportHeading, data)
	case errors.Is(err, fs.ErrNotExist) || reportPath == "":
		fmt.Fprintf(&b, "\nWarning: %s: %s\n", ReportNotFound, reportPath)
	default:
		fmt.Fprintf(&b, "\nWarning: could not read report %s: %s\n", reportPath, err)
	}

	return b.String()
}
