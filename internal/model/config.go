package model

import (
	"fmt"

	"github.com/slok/mpifilter/internal/utils/env"
)

// PipelineConfig is the deployment configuration of the staging and processing pipeline.
type PipelineConfig struct {
	StagingDir    string
	Extension     string
	Launcher      string
	Workers       int
	Machinefile   string
	WrapperScript string
	ReportPath    string
	Marker        string
	UnitsPerImage int
	KernelSize    int
	// Env are extra environment variables of the processing program.
	Env map[string]string
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if c.StagingDir == "" {
		return fmt.Errorf("staging dir is required: %w", ErrNotValid)
	}
	if c.Extension == "" {
		return fmt.Errorf("image extension is required: %w", ErrNotValid)
	}
	if c.Launcher == "" {
		return fmt.Errorf("launcher is required: %w", ErrNotValid)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive: %w", ErrNotValid)
	}
	if c.Machinefile == "" {
		return fmt.Errorf("machinefile is required: %w", ErrNotValid)
	}
	if c.WrapperScript == "" {
		return fmt.Errorf("wrapper script is required: %w", ErrNotValid)
	}
	if c.ReportPath == "" {
		return fmt.Errorf("report path is required: %w", ErrNotValid)
	}
	if c.Marker == "" {
		return fmt.Errorf("unit marker is required: %w", ErrNotValid)
	}
	if c.UnitsPerImage < 0 {
		return fmt.Errorf("units per image can't be negative: %w", ErrNotValid)
	}
	if err := env.Validate(c.Env); err != nil {
		return fmt.Errorf("%s: %w", err, ErrNotValid)
	}
	return nil
}
