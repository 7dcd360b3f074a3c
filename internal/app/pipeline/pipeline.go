package pipeline

import (
	"context"
	"fmt"

	"github.com/slok/mpifilter/internal/app/run"
	"github.com/slok/mpifilter/internal/app/stage"
	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/supervisor"
)

// Stager stages images.
type Stager interface {
	Run(ctx context.Context, req stage.Request) (*stage.Result, error)
}

// Processor runs the processing program over the staged images.
type Processor interface {
	Run(ctx context.Context, req run.Request) (*run.Result, error)
}

// ServiceConfig is the configuration for the pipeline service.
type ServiceConfig struct {
	Stager    Stager
	Processor Processor
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Stager == nil {
		return fmt.Errorf("stager is required")
	}
	if c.Processor == nil {
		return fmt.Errorf("processor is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Pipeline"})
	return nil
}

// Service stages an input dir and processes it.
type Service struct {
	stager    Stager
	processor Processor
	logger    log.Logger
}

// NewService creates a new pipeline service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		stager:    cfg.Stager,
		processor: cfg.Processor,
		logger:    cfg.Logger,
	}, nil
}

// Request contains the parameters for a pipeline run.
type Request struct {
	InputDir   string
	KernelSize int
	// ExpectedUnits is passed to the run, a negative value derives it from the staged images.
	ExpectedUnits int
	// StageListener and RunListener receive the events of each step.
	StageListener supervisor.Listener
	RunListener   supervisor.Listener
	// OnStaged is called with the copied images before the processing starts, optional.
	OnStaged func(copied []string)
}

// Result is the result of a pipeline run.
type Result struct {
	Copied  []string
	Command []string
	Summary string
}

// Run stages the images and, only when at least one was copied, runs the processing.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	staged, err := s.stager.Run(ctx, stage.Request{
		InputDir: req.InputDir,
		Listener: req.StageListener,
	})
	if err != nil {
		return nil, err
	}
	if len(staged.Copied) == 0 {
		return nil, model.ErrNothingCopied
	}
	s.logger.Infof("%d images staged, starting processing", len(staged.Copied))
	if req.OnStaged != nil {
		req.OnStaged(staged.Copied)
	}

	res, err := s.processor.Run(ctx, run.Request{
		KernelSize:    req.KernelSize,
		ExpectedUnits: req.ExpectedUnits,
		Listener:      req.RunListener,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Copied:  staged.Copied,
		Command: res.Command,
		Summary: res.Summary,
	}, nil
}
