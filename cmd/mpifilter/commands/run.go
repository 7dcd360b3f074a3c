package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mpifilter/internal/app/run"
)

// processOutputPrefix is prepended to the processing program output lines.
const processOutputPrefix = "> "

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	kernelSize    int
	expectedUnits int
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the MPI image processing over the staging dir.")
	c.Cmd.Flag("kernel-size", "Filter kernel size (odd, 3-155), 0 uses the configured one.").Short('k').Default("0").IntVar(&c.kernelSize)
	c.Cmd.Flag("expected-units", "Expected unit markers for the progress, negative derives them from the staged images.").Default("-1").IntVar(&c.expectedUnits)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
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

	svc, err := run.NewService(run.ServiceConfig{
		Supervisor: sup,
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	listener := c.rootCmd.TaskListener("Processing", processOutputPrefix)
	res, err := svc.Run(ctx, run.Request{
		KernelSize:    c.kernelSize,
		ExpectedUnits: c.expectedUnits,
		Listener:      listener,
	})
	listener.Done()
	if err != nil {
		return err
	}

	printSummary(c.rootCmd, res.Summary)
	return nil
}

func printSummary(root *RootCommand, summary string) {
	fmt.Fprintln(root.Stdout, summary)
	fmt.Fprintln(root.Stdout, root.Styles().OK.Render("Processing finished."))
}
