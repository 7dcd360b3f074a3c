// Package mpi builds the invocation of the distributed image processing program.
package mpi

import (
	"fmt"
	"strconv"

	"github.com/slok/mpifilter/internal/conventions"
	"github.com/slok/mpifilter/internal/model"
)

// CommandConfig are the parameters of an MPI run.
type CommandConfig struct {
	Launcher      string
	Workers       int
	Machinefile   string
	WrapperScript string
	KernelSize    int
}

// CommandConfigFromPipeline returns the command configuration of a pipeline
// configuration with the given kernel size.
func CommandConfigFromPipeline(cfg model.PipelineConfig, kernelSize int) CommandConfig {
	return CommandConfig{
		Launcher:      cfg.Launcher,
		Workers:       cfg.Workers,
		Machinefile:   cfg.Machinefile,
		WrapperScript: cfg.WrapperScript,
		KernelSize:    kernelSize,
	}
}

// Command returns the argv of the MPI run:
// launcher -n <workers> -f <machinefile> <wrapper> <kernel size>.
func Command(cfg CommandConfig) ([]string, error) {
	if cfg.Launcher == "" {
		return nil, fmt.Errorf("launcher is required: %w", model.ErrNotValid)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive: %w", model.ErrNotValid)
	}
	if cfg.Machinefile == "" {
		return nil, fmt.Errorf("machinefile is required: %w", model.ErrNotValid)
	}
	if cfg.WrapperScript == "" {
		return nil, fmt.Errorf("wrapper script is required: %w", model.ErrNotValid)
	}

	kernelSize, err := NormalizeKernelSize(cfg.KernelSize)
	if err != nil {
		return nil, err
	}

	return []string{
		cfg.Launcher,
		"-n", strconv.Itoa(cfg.Workers),
		"-f", cfg.Machinefile,
		cfg.WrapperScript,
		strconv.Itoa(kernelSize),
	}, nil
}

// NormalizeKernelSize validates a kernel size and returns it as an odd value,
// even sizes are moved up to the next odd one.
func NormalizeKernelSize(size int) (int, error) {
	if size < conventions.MinKernelSize || size > conventions.MaxKernelSize {
		return 0, fmt.Errorf("kernel size must be between %d and %d, got %d: %w",
			conventions.MinKernelSize, conventions.MaxKernelSize, size, model.ErrNotValid)
	}
	if size%2 == 0 {
		size++
	}
	return size, nil
}

// ExpectedUnits returns the number of unit markers a run over the images will print.
func ExpectedUnits(images, unitsPerImage int) int {
	if images <= 0 || unitsPerImage <= 0 {
		return 0
	}
	return images * unitsPerImage
}
