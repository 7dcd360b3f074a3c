package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mpifilter/internal/app/pipeline"
	"github.com/slok/mpifilter/internal/app/run"
	"github.com/slok/mpifilter/internal/app/stage"
)

type PipelineCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	inputDir      string
	kernelSize    int
	expectedUnits int
}

// NewPipelineCommand returns the pipeline command.
func NewPipelineCommand(rootCmd *RootCommand, app *kingpin.Application) *PipelineCommand {
	c := &PipelineCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("pipeline", "Stage the images of a directory and process them.")
	c.Cmd.Arg("input-dir", "Directory with the images to process.").Required().StringVar(&c.inputDir)
	c.Cmd.Flag("kernel-size", "Filter kernel size (odd, 3-155), 0 uses the configured one.").Short('k').Default("0").IntVar(&c.kernelSize)
	c.Cmd.Flag("expected-units", "Expected unit markers for the progress, negative derives them from the staged images.").Default("-1").IntVar(&c.expectedUnits)

	return c
}

func (c PipelineCommand) Name() string { return c.Cmd.FullCommand() }

func (c PipelineCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.PipelineConfig(ctx)
	if err != nil {
		return err
	}

	sup, closeSup, err := c.rootCmd.Supervisor(ctx)
	if err != nil {
		return err
	}
	defer closeSup()

	stageSvc, err := stage.NewService(stage.ServiceConfig{Supervisor: sup, Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create stage service: %w", err)
	}
	runSvc, err := run.NewService(run.ServiceConfig{Supervisor: sup, Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create run service: %w", err)
	}
	svc, err := pipeline.NewService(pipeline.ServiceConfig{
		Stager:    stageSvc,
		Processor: runSvc,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	stageListener := c.rootCmd.TaskListener("Copying", "")
	runListener := c.rootCmd.TaskListener("Processing", processOutputPrefix)
	staged := false
	res, err := svc.Run(ctx, pipeline.Request{
		InputDir:      c.inputDir,
		KernelSize:    c.kernelSize,
		ExpectedUnits: c.expectedUnits,
		StageListener: stageListener,
		RunListener:   runListener,
		OnStaged: func(copied []string) {
			staged = true
			stageListener.Done()
			_ = printStaged(c.rootCmd, cfg, copied)
		},
	})
	if staged {
		runListener.Done()
	} else {
		stageListener.Done()
	}
	if err != nil {
		return err
	}

	printSummary(c.rootCmd, res.Summary)
	return nil
}
