package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mpifilter/internal/app/history"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/printer"
	"github.com/slok/mpifilter/internal/storage/sqlite"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID        string
	kindFilter   string
	statusFilter string
	limit        int
	format       string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the recorded task runs.")
	c.Cmd.Arg("run-id", "Show the details of a single run.").StringVar(&c.runID)
	c.Cmd.Flag("kind", "Filter by kind (copy, process).").StringVar(&c.kindFilter)
	c.Cmd.Flag("status", "Filter by status (running, done, failed).").StringVar(&c.statusFilter)
	c.Cmd.Flag("limit", "Max number of runs, 0 lists all of them.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var kindFilter *model.TaskKind
	if c.kindFilter != "" {
		kind := model.TaskKind(strings.ToLower(c.kindFilter))
		switch kind {
		case model.TaskKindCopy, model.TaskKindProcess:
			kindFilter = &kind
		default:
			return fmt.Errorf("invalid kind filter: %s (must be: copy, process)", c.kindFilter)
		}
	}

	var statusFilter *model.TaskStatus
	if c.statusFilter != "" {
		status := model.TaskStatus(strings.ToLower(c.statusFilter))
		switch status {
		case model.TaskStatusRunning, model.TaskStatusDone, model.TaskStatusFailed:
			statusFilter = &status
		default:
			return fmt.Errorf("invalid status filter: %s (must be: running, done, failed)", c.statusFilter)
		}
	}

	// History is always read from the database, even with --no-history.
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout, c.rootCmd.Styles())
	}

	if c.runID != "" {
		run, err := svc.Get(ctx, c.runID)
		if err != nil {
			return fmt.Errorf("could not get run: %w", err)
		}
		return p.PrintRun(*run)
	}

	runs, err := svc.Run(ctx, history.Request{
		KindFilter:   kindFilter,
		StatusFilter: statusFilter,
		Limit:        c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	if err := p.PrintRuns(runs); err != nil {
		return fmt.Errorf("could not print runs: %w", err)
	}

	return nil
}
