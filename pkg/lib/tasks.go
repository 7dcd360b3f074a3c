package lib

import (
	"context"
	"fmt"

	"github.com/slok/mpifilter/internal/app/history"
	"github.com/slok/mpifilter/internal/app/pipeline"
	"github.com/slok/mpifilter/internal/app/run"
	"github.com/slok/mpifilter/internal/app/stage"
)

// Stage copies the images of opts.InputDir into the configured staging dir,
// replacing whatever the staging dir had.
//
// Returns an error matching [ErrTaskRunning] if the client is already staging,
// and [ErrNoValidImages] if the input dir has no images.
func (c *Client) Stage(ctx context.Context, opts StageOpts) (*StageResult, error) {
	svc, err := c.stageService()
	if err != nil {
		return nil, err
	}

	res, err := svc.Run(ctx, stage.Request{
		InputDir: opts.InputDir,
		Listener: opts.Listener.toInternal(),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &StageResult{Copied: res.Copied}, nil
}

// Process runs the MPI processing program over the staged images and returns
// its report.
//
// The preflight checks run first. Returns an error matching
// [ErrPreflightFailed] if any of them fails.
func (c *Client) Process(ctx context.Context, opts ProcessOpts) (*ProcessResult, error) {
	svc, err := c.runService()
	if err != nil {
		return nil, err
	}

	res, err := svc.Run(ctx, run.Request{
		KernelSize:    opts.KernelSize,
		ExpectedUnits: opts.ExpectedUnits,
		Listener:      opts.Listener.toInternal(),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &ProcessResult{
		Command:       res.Command,
		ExpectedUnits: res.ExpectedUnits,
		Summary:       res.Summary,
	}, nil
}

// Pipeline stages the images of opts.InputDir and processes them.
//
// Processing is not started when nothing was staged, in that case the error
// matches [ErrNothingCopied].
func (c *Client) Pipeline(ctx context.Context, opts PipelineOpts) (*PipelineResult, error) {
	stageSvc, err := c.stageService()
	if err != nil {
		return nil, err
	}
	runSvc, err := c.runService()
	if err != nil {
		return nil, err
	}

	svc, err := pipeline.NewService(pipeline.ServiceConfig{
		Stager:    stageSvc,
		Processor: runSvc,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create pipeline service: %w", err)
	}

	res, err := svc.Run(ctx, pipeline.Request{
		InputDir:      opts.InputDir,
		KernelSize:    opts.KernelSize,
		ExpectedUnits: opts.ExpectedUnits,
		StageListener: opts.StageListener.toInternal(),
		RunListener:   opts.RunListener.toInternal(),
		OnStaged:      opts.OnStaged,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &PipelineResult{
		Copied:  res.Copied,
		Command: res.Command,
		Summary: res.Summary,
	}, nil
}

// History returns the recorded task runs, most recent first.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]TaskRun, error) {
	svc, err := c.historyService()
	if err != nil {
		return nil, err
	}

	req := history.Request{}
	if opts != nil {
		req.KindFilter = toInternalKind(opts.Kind)
		req.StatusFilter = toInternalStatus(opts.Status)
		req.Limit = opts.Limit
	}

	runs, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalRuns(runs), nil
}

// GetRun returns a single recorded task run.
//
// Returns an error matching [ErrNotFound] if the run does not exist.
func (c *Client) GetRun(ctx context.Context, id string) (*TaskRun, error) {
	svc, err := c.historyService()
	if err != nil {
		return nil, err
	}

	r, err := svc.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	out := fromInternalRun(*r)
	return &out, nil
}

func (c *Client) stageService() (*stage.Service, error) {
	svc, err := stage.NewService(stage.ServiceConfig{
		Supervisor: c.sup,
		Config:     c.pipeline,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create stage service: %w", err)
	}
	return svc, nil
}

func (c *Client) runService() (*run.Service, error) {
	svc, err := run.NewService(run.ServiceConfig{
		Supervisor: c.sup,
		Config:     c.pipeline,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create run service: %w", err)
	}
	return svc, nil
}

func (c *Client) historyService() (*history.Service, error) {
	svc, err := history.NewService(history.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create history service: %w", err)
	}
	return svc, nil
}
