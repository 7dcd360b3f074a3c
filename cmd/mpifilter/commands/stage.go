package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mpifilter/internal/app/stage"
	"github.com/slok/mpifilter/internal/model"
)

type StageCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	inputDir string
}

// NewStageCommand returns the stage command.
func NewStageCommand(rootCmd *RootCommand, app *kingpin.Application) *StageCommand {
	c := &StageCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("stage", "Copy the images of a directory into the staging dir.")
	c.Cmd.Arg("input-dir", "Directory with the images to process.").Required().StringVar(&c.inputDir)

	return c
}

func (c StageCommand) Name() string { return c.Cmd.FullCommand() }

func (c StageCommand) Run(ctx context.Context) error {
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

	svc, err := stage.NewService(stage.ServiceConfig{
		Supervisor: sup,
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	listener := c.rootCmd.TaskListener("Copying", "")
	res, err := svc.Run(ctx, stage.Request{
		InputDir: c.inputDir,
		Listener: listener,
	})
	listener.Done()
	if err != nil {
		return err
	}

	return printStaged(c.rootCmd, cfg, res.Copied)
}

func printStaged(root *RootCommand, cfg model.PipelineConfig, copied []string) error {
	if len(copied) == 0 {
		return model.ErrNothingCopied
	}

	styles := root.Styles()
	fmt.Fprintf(root.Stdout, "%s %d images copied to %s\n", styles.OK.Render("OK"), len(copied), cfg.StagingDir)
	for _, name := range copied {
		fmt.Fprintf(root.Stdout, "  %s\n", name)
	}
	return nil
}
