package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/mpifilter/internal/model"
)

// ConfigYAMLRepository loads pipeline configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads a pipeline configuration from a YAML file on top of base, keys missing
// in the file keep the base value. The result is validated.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string, base model.PipelineConfig) (model.PipelineConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.PipelineConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.PipelineConfig{}, ctx.Err()
	}

	cfg := fromModel(base)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.PipelineConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	m := cfg.toModel()
	if err := m.Validate(); err != nil {
		return model.PipelineConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return m, nil
}

// PipelineConfig represents the YAML structure for the pipeline configuration.
type PipelineConfig struct {
	Staging    StagingConfig    `yaml:"staging"`
	Processing ProcessingConfig `yaml:"processing"`
}

// StagingConfig represents the YAML structure for the image staging configuration.
type StagingConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// ProcessingConfig represents the YAML structure for the MPI processing configuration.
type ProcessingConfig struct {
	Launcher      string `yaml:"launcher"`
	Workers       int    `yaml:"workers"`
	Machinefile   string `yaml:"machinefile"`
	Wrapper       string `yaml:"wrapper"`
	Report        string `yaml:"report"`
	Marker        string `yaml:"marker"`
	UnitsPerImage int    `yaml:"units_per_image"`
	KernelSize    int    `yaml:"kernel_size"`
	// Env are extra environment variables of the processing program.
	Env map[string]string `yaml:"env"`
}

func fromModel(m model.PipelineConfig) PipelineConfig {
	return PipelineConfig{
		Staging: StagingConfig{
			Dir:       m.StagingDir,
			Extension: m.Extension,
		},
		Processing: ProcessingConfig{
			Launcher:      m.Launcher,
			Workers:       m.Workers,
			Machinefile:   m.Machinefile,
			Wrapper:       m.WrapperScript,
			Report:        m.ReportPath,
			Marker:        m.Marker,
			UnitsPerImage: m.UnitsPerImage,
			KernelSize:    m.KernelSize,
			Env:           m.Env,
		},
	}
}

func (c PipelineConfig) toModel() model.PipelineConfig {
	return model.PipelineConfig{
		StagingDir:    c.Staging.Dir,
		Extension:     c.Staging.Extension,
		Launcher:      c.Processing.Launcher,
		Workers:       c.Processing.Workers,
		Machinefile:   c.Processing.Machinefile,
		WrapperScript: c.Processing.Wrapper,
		ReportPath:    c.Processing.Report,
		Marker:        c.Processing.Marker,
		UnitsPerImage: c.Processing.UnitsPerImage,
		KernelSize:    c.Processing.KernelSize,
		Env:           c.Processing.Env,
	}
}
