package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/mpifilter/internal/model"
)

func validPipelineConfig() model.PipelineConfig {
	return model.PipelineConfig{
		StagingDir:    "/mirror/diff_images/img_gui",
		Extension:     ".bmp",
		Launcher:      "mpiexec",
		Workers:       13,
		Machinefile:   "/mirror/machinefile",
		WrapperScript: "/mirror/diff_images/procesador_wrapper.sh",
		ReportPath:    "/mirror/diff_images/reporte_total.txt",
		Marker:        "-> [",
		UnitsPerImage: 6,
		KernelSize:    3,
	}
}

func TestPipelineConfigValidate(t *testing.T) {
	tests := map[string]struct {
		config func() model.PipelineConfig
		expErr bool
	}{
		"A valid config should not fail": {
			config: validPipelineConfig,
		},

		"Zero units per image should not fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.UnitsPerImage = 0
				return c
			},
		},

		"Missing staging dir should fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.StagingDir = ""
				return c
			},
			expErr: true,
		},

		"Zero workers should fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.Workers = 0
				return c
			},
			expErr: true,
		},

		"Missing wrapper should fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.WrapperScript = ""
				return c
			},
			expErr: true,
		},

		"Missing marker should fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.Marker = ""
				return c
			},
			expErr: true,
		},

		"Negative units per image should fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.UnitsPerImage = -1
				return c
			},
			expErr: true,
		},

		"Extra environment variables should not fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.Env = map[string]string{"OMP_NUM_THREADS": "2"}
				return c
			},
		},

		"An invalid environment variable name should fail": {
			config: func() model.PipelineConfig {
				c := validPipelineConfig()
				c.Env = map[string]string{"OMP-THREADS": "2"}
				return c
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := test.config()
			err := cfg.Validate()
			if test.expErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
