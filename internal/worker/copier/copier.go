// Package copier implements the staging copy worker.
package copier

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slok/mpifilter/internal/conventions"
	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/progress"
	"github.com/slok/mpifilter/internal/utils/file"
	"github.com/slok/mpifilter/internal/worker"
)

// FileOps are the filesystem mutations of a copy run.
type FileOps interface {
	RemoveAll(path string) error
	CopyFile(src, dst string) (int64, error)
}

type osFileOps struct{}

func (osFileOps) RemoveAll(path string) error             { return os.RemoveAll(path) }
func (osFileOps) CopyFile(src, dst string) (int64, error) { return file.Copy(src, dst) }

// OSFileOps is the FileOps implementation backed by the OS filesystem.
var OSFileOps FileOps = osFileOps{}

// WorkerConfig is the configuration for the copy worker.
type WorkerConfig struct {
	Task    model.CopyTask
	FileOps FileOps
	Logger  log.Logger
}

func (c *WorkerConfig) defaults() error {
	if c.Task.SourceDir == "" {
		return fmt.Errorf("source dir is required")
	}
	if c.Task.DestDir == "" {
		return fmt.Errorf("destination dir is required")
	}
	c.Task.Extension = NormalizeExtension(c.Task.Extension)
	if c.FileOps == nil {
		c.FileOps = OSFileOps
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "worker.Copier"})
	return nil
}

// Worker copies the matching files of a source directory into a cleared
// destination directory. The completion result is the ordered list of copied
// file names.
type Worker struct {
	task   model.CopyTask
	fs     FileOps
	logger log.Logger
	guard  worker.StartGuard
}

// NewWorker returns a new copy worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		task:   cfg.Task,
		fs:     cfg.FileOps,
		logger: cfg.Logger,
	}, nil
}

var _ worker.Worker = &Worker{}

func (w *Worker) Kind() model.TaskKind { return model.TaskKindCopy }

// Params returns the task the worker runs.
func (w *Worker) Params() any { return w.task }

func (w *Worker) Start() (<-chan model.Event, error) {
	if err := w.guard.Start(); err != nil {
		return nil, err
	}
	return worker.Go(w.logger, w.run), nil
}

func (w *Worker) run(s *worker.Stream[[]string]) {
	images, err := FindImages(w.task.SourceDir, w.task.Extension)
	if err != nil {
		s.Fail(fmt.Errorf("could not list source dir: %w", err))
		return
	}
	if len(images) == 0 {
		s.Fail(model.ErrNoValidImages)
		return
	}
	w.logger.Debugf("Found %d images in %s", len(images), w.task.SourceDir)

	if err := w.clearDest(s); err != nil {
		s.Fail(fmt.Errorf("could not clear destination dir: %w", err))
		return
	}

	copied := make([]string, 0, len(images))
	for i, name := range images {
		src := filepath.Join(w.task.SourceDir, name)
		dst := filepath.Join(w.task.DestDir, name)

		n, err := w.fs.CopyFile(src, dst)
		if err != nil {
			s.Logf("could not copy %s: %s", name, err)
		} else {
			copied = append(copied, name)
			w.logger.Debugf("Copied %s (%d bytes)", name, n)
		}

		s.Progress(progress.Percent(i+1, len(images)))
	}

	s.Complete(copied)
}

// clearDest removes every entry of the destination directory, removal errors
// are logged and skipped.
func (w *Worker) clearDest(s *worker.Stream[[]string]) error {
	entries, err := os.ReadDir(w.task.DestDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := w.fs.RemoveAll(filepath.Join(w.task.DestDir, e.Name())); err != nil {
			s.Logf("could not remove %s: %s", e.Name(), err)
		}
	}

	return nil
}

// FindImages returns the names of the regular files directly inside dir whose
// extension matches ext case-insensitively, sorted by name.
func FindImages(dir, ext string) ([]string, error) {
	ext = NormalizeExtension(ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		// Stat follows symlinks, so links to images are accepted.
		if !file.IsRegular(filepath.Join(dir, e.Name())) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}

// NormalizeExtension returns ext with a leading dot, the default image
// extension when empty.
func NormalizeExtension(ext string) string {
	if ext == "" {
		return conventions.DefaultImageExtension
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
