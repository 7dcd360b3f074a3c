package history

import (
	"context"
	"fmt"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.RunRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})
	return nil
}

// Service lists the recorded task runs.
type Service struct {
	repo   storage.RunRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	KindFilter   *model.TaskKind
	StatusFilter *model.TaskStatus
	Limit        int
}

// Run lists the recorded runs, most recent first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.TaskRun, error) {
	s.logger.Debugf("listing runs with filters: kind=%v status=%v", req.KindFilter, req.StatusFilter)

	runs, err := s.repo.ListRuns(ctx, storage.ListRunsOpts{
		Kind:   req.KindFilter,
		Status: req.StatusFilter,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	s.logger.Debugf("found %d runs", len(runs))
	return runs, nil
}

// Get returns a single recorded run.
func (s *Service) Get(ctx context.Context, id string) (*model.TaskRun, error) {
	if id == "" {
		return nil, fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get run %s: %w", id, err)
	}

	return run, nil
}
