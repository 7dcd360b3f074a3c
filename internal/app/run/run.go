package run

import (
	"context"
	"fmt"

	"github.com/slok/mpifilter/internal/app/doctor"
	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/mpi"
	"github.com/slok/mpifilter/internal/supervisor"
	"github.com/slok/mpifilter/internal/worker/copier"
	"github.com/slok/mpifilter/internal/worker/process"
)

// Checker runs preflight checks.
type Checker interface {
	Run(ctx context.Context) []model.CheckResult
}

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Supervisor *supervisor.Supervisor
	Config     model.PipelineConfig
	// Checker runs the preflight checks before starting, defaults to the doctor checks.
	Checker Checker
	// Dir is the working directory of the MPI launcher.
	Dir    string
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Supervisor == nil {
		return fmt.Errorf("supervisor is required")
	}
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	if c.Checker == nil {
		checker, err := doctor.NewService(doctor.ServiceConfig{Config: c.Config, Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create checker: %w", err)
		}
		c.Checker = checker
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	return nil
}

// Service runs the MPI image processing program over the staging dir.
type Service struct {
	sup     *supervisor.Supervisor
	cfg     model.PipelineConfig
	checker Checker
	dir     string
	logger  log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sup:     cfg.Supervisor,
		cfg:     cfg.Config,
		checker: cfg.Checker,
		dir:     cfg.Dir,
		logger:  cfg.Logger,
	}, nil
}

// Request contains the parameters for a run.
type Request struct {
	// KernelSize is the filter kernel size, 0 uses the configured one.
	KernelSize int
	// ExpectedUnits is the progress denominator, a negative value derives it
	// from the staged images.
	ExpectedUnits int
	Listener      supervisor.Listener
}

// Result is the result of a run.
type Result struct {
	Command       []string
	ExpectedUnits int
	// Summary has the exit status warnings, the standard error and the report.
	Summary string
}

// Run checks the preconditions, builds the MPI command and runs it to completion.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if r, ok := model.FirstError(s.checker.Run(ctx)); ok {
		return nil, fmt.Errorf("%s: %s: %w", r.ID, r.Message, model.ErrPreflightFailed)
	}

	kernelSize := req.KernelSize
	if kernelSize == 0 {
		kernelSize = s.cfg.KernelSize
	}
	cmd, err := mpi.Command(mpi.CommandConfigFromPipeline(s.cfg, kernelSize))
	if err != nil {
		return nil, fmt.Errorf("could not build command: %w", err)
	}

	expected := req.ExpectedUnits
	if expected < 0 {
		expected = s.stagedUnits()
	}

	w, err := process.NewWorker(process.WorkerConfig{
		Task: model.ProcessTask{
			Command:       cmd,
			ReportPath:    s.cfg.ReportPath,
			ExpectedUnits: expected,
			Marker:        s.cfg.Marker,
			Env:           s.cfg.Env,
		},
		Dir:    s.dir,
		Logger: s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create process worker: %w", err)
	}

	s.logger.Infof("Running %v (%d expected units)", cmd, expected)
	summary, err := supervisor.Run[string](ctx, s.sup, w, req.Listener)
	if err != nil {
		return nil, fmt.Errorf("could not run processing: %w", err)
	}

	return &Result{
		Command:       cmd,
		ExpectedUnits: expected,
		Summary:       summary,
	}, nil
}

// stagedUnits returns the expected units of the images in the staging dir, 0
// when they can't be listed.
func (s *Service) stagedUnits() int {
	images, err := copier.FindImages(s.cfg.StagingDir, s.cfg.Extension)
	if err != nil {
		s.logger.Warningf("Could not list staged images, progress is unknown: %s", err)
		return 0
	}
	return mpi.ExpectedUnits(len(images), s.cfg.UnitsPerImage)
}
