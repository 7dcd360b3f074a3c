package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/utils/file"
)

// Check IDs.
const (
	CheckLauncher    = "launcher"
	CheckWrapper     = "wrapper_script"
	CheckMachinefile = "machinefile"
	CheckStagingDir  = "staging_dir"
)

// ServiceConfig is the configuration for the doctor service.
type ServiceConfig struct {
	Config model.PipelineConfig
	// LookPath resolves the launcher binary, defaults to exec.LookPath.
	LookPath func(file string) (string, error)
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Doctor"})
	return nil
}

// Service runs the preflight checks of an MPI run.
type Service struct {
	cfg      model.PipelineConfig
	lookPath func(file string) (string, error)
	logger   log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		cfg:      cfg.Config,
		lookPath: cfg.LookPath,
		logger:   cfg.Logger,
	}, nil
}

// Run performs the preflight checks.
func (s *Service) Run(ctx context.Context) []model.CheckResult {
	results := []model.CheckResult{
		s.checkLauncher(),
		s.checkWrapper(),
		s.checkMachinefile(),
		s.checkStagingDir(),
	}

	ok, warnings, errors := model.CountByStatus(results)
	s.logger.Debugf("Preflight checks: %d ok, %d warnings, %d errors", ok, warnings, errors)

	return results
}

func (s *Service) checkLauncher() model.CheckResult {
	path, err := s.lookPath(s.cfg.Launcher)
	if err != nil {
		return model.CheckResult{
			ID:      CheckLauncher,
			Message: fmt.Sprintf("MPI launcher %q not found: %v", s.cfg.Launcher, err),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      CheckLauncher,
		Message: fmt.Sprintf("MPI launcher found at %s", path),
		Status:  model.CheckStatusOK,
	}
}

func (s *Service) checkWrapper() model.CheckResult {
	path := s.cfg.WrapperScript
	if !file.Exists(path) {
		return model.CheckResult{
			ID:      CheckWrapper,
			Message: fmt.Sprintf("Wrapper script not found: %s", path),
			Status:  model.CheckStatusError,
		}
	}
	if !file.IsExecutable(path) {
		return model.CheckResult{
			ID:      CheckWrapper,
			Message: fmt.Sprintf("Wrapper script is not executable: %s", path),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      CheckWrapper,
		Message: fmt.Sprintf("Wrapper script found at %s", path),
		Status:  model.CheckStatusOK,
	}
}

func (s *Service) checkMachinefile() model.CheckResult {
	path := s.cfg.Machinefile
	if !file.Exists(path) {
		return model.CheckResult{
			ID:      CheckMachinefile,
			Message: fmt.Sprintf("Machinefile not found: %s", path),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      CheckMachinefile,
		Message: fmt.Sprintf("Machinefile found at %s", path),
		Status:  model.CheckStatusOK,
	}
}

// checkStagingDir only warns, staging creates the directory.
func (s *Service) checkStagingDir() model.CheckResult {
	path := s.cfg.StagingDir
	info, err := os.Stat(path)
	if err != nil {
		return model.CheckResult{
			ID:      CheckStagingDir,
			Message: fmt.Sprintf("Staging dir not available: %v", err),
			Status:  model.CheckStatusWarning,
		}
	}
	if !info.IsDir() {
		return model.CheckResult{
			ID:      CheckStagingDir,
			Message: fmt.Sprintf("Staging path is not a directory: %s", path),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      CheckStagingDir,
		Message: fmt.Sprintf("Staging dir found at %s", path),
		Status:  model.CheckStatusOK,
	}
}
