package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/supervisor"
	"github.com/slok/mpifilter/internal/worker/copier"
)

// ServiceConfig is the configuration for the stage service.
type ServiceConfig struct {
	Supervisor *supervisor.Supervisor
	Config     model.PipelineConfig
	// FileOps are the copy filesystem mutations, defaults to the OS filesystem.
	FileOps copier.FileOps
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Supervisor == nil {
		return fmt.Errorf("supervisor is required")
	}
	if c.Config.StagingDir == "" {
		return fmt.Errorf("staging dir is required")
	}
	if c.FileOps == nil {
		c.FileOps = copier.OSFileOps
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Stage"})
	return nil
}

// Service stages the images of an input directory into the staging dir.
type Service struct {
	sup     *supervisor.Supervisor
	cfg     model.PipelineConfig
	fileOps copier.FileOps
	logger  log.Logger
}

// NewService creates a new stage service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sup:     cfg.Supervisor,
		cfg:     cfg.Config,
		fileOps: cfg.FileOps,
		logger:  cfg.Logger,
	}, nil
}

// Request contains the parameters for a stage operation.
type Request struct {
	InputDir string
	Listener supervisor.Listener
}

// Result is the result of a stage operation.
type Result struct {
	// Copied are the staged file names, sorted.
	Copied []string
}

// Run clears the staging dir and copies the input dir images into it.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.InputDir == "" {
		return nil, fmt.Errorf("input dir is required: %w", model.ErrNotValid)
	}

	info, err := os.Stat(req.InputDir)
	if err != nil {
		return nil, fmt.Errorf("could not access input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %q is not a directory: %w", req.InputDir, model.ErrNotValid)
	}

	same, err := samePath(req.InputDir, s.cfg.StagingDir)
	if err != nil {
		return nil, err
	}
	if same {
		return nil, fmt.Errorf("input dir can't be the staging dir: %w", model.ErrNotValid)
	}

	if err := os.MkdirAll(s.cfg.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create staging dir: %w", err)
	}

	w, err := copier.NewWorker(copier.WorkerConfig{
		Task: model.CopyTask{
			SourceDir: req.InputDir,
			DestDir:   s.cfg.StagingDir,
			Extension: s.cfg.Extension,
		},
		FileOps: s.fileOps,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create copy worker: %w", err)
	}

	s.logger.Infof("Staging images from %s into %s", req.InputDir, s.cfg.StagingDir)
	copied, err := supervisor.Run[[]string](ctx, s.sup, w, req.Listener)
	if err != nil {
		return nil, fmt.Errorf("could not stage images: %w", err)
	}

	s.logger.Debugf("Staged %d images", len(copied))
	return &Result{Copied: copied}, nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("could not resolve %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("could not resolve %s: %w", b, err)
	}
	return absA == absB, nil
}
