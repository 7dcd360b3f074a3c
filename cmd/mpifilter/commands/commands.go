package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/mpifilter/internal/conventions"
	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/printer"
	"github.com/slok/mpifilter/internal/storage"
	storageio "github.com/slok/mpifilter/internal/storage/io"
	"github.com/slok/mpifilter/internal/storage/memory"
	"github.com/slok/mpifilter/internal/storage/sqlite"
	"github.com/slok/mpifilter/internal/supervisor"
	"github.com/slok/mpifilter/internal/utils/env"
)

// detachedTaskGrace is how long a command waits on exit for the tasks it
// stopped waiting for, e.g. after an interrupt.
const detachedTaskGrace = 3 * time.Second

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	NoProgress bool
	LoggerType string
	DBPath     string
	NoHistory  bool
	ConfigPath string

	// Pipeline config overrides, zero values keep the configured value.
	StagingDir  string
	Launcher    string
	Workers     int
	Machinefile string
	Wrapper     string
	Report      string
	EnvSpecs    []string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger and output color.").BoolVar(&c.NoColor)
	app.Flag("no-progress", "Print progress as lines instead of progress bars.").BoolVar(&c.NoProgress)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := conventions.DBPath(filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir))
	app.Flag("db-path", "Path to the run history SQLite database file.").Envar("MPIFILTER_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("no-history", "Don't record the runs in the run history.").BoolVar(&c.NoHistory)
	app.Flag("config", "Path to a YAML pipeline configuration file.").Envar("MPIFILTER_CONFIG").StringVar(&c.ConfigPath)

	app.Flag("staging-dir", "Directory the images are staged into.").StringVar(&c.StagingDir)
	app.Flag("launcher", "MPI launcher binary.").StringVar(&c.Launcher)
	app.Flag("workers", "Number of MPI processes.").IntVar(&c.Workers)
	app.Flag("machinefile", "MPI machinefile path.").StringVar(&c.Machinefile)
	app.Flag("wrapper", "Processing wrapper script run on every node.").StringVar(&c.Wrapper)
	app.Flag("report", "Report file written by the processing program.").StringVar(&c.Report)
	app.Flag("env", "Extra environment variable of the processing program (KEY=VALUE, or KEY to pass it through). Repeatable.").StringsVar(&c.EnvSpecs)

	return c
}

// PipelineConfig returns the pipeline configuration: the defaults, overridden by
// the config file if any, overridden by the flags.
func (r *RootCommand) PipelineConfig(ctx context.Context) (model.PipelineConfig, error) {
	cfg := conventions.DefaultPipelineConfig()

	if r.ConfigPath != "" {
		path, err := filepath.Abs(r.ConfigPath)
		if err != nil {
			return model.PipelineConfig{}, fmt.Errorf("could not resolve config path: %w", err)
		}

		repo := storageio.NewConfigYAMLRepository(os.DirFS(filepath.Dir(path)))
		cfg, err = repo.GetConfig(ctx, filepath.Base(path), cfg)
		if err != nil {
			return model.PipelineConfig{}, fmt.Errorf("could not load config file: %w", err)
		}
	}

	if r.StagingDir != "" {
		cfg.StagingDir = r.StagingDir
	}
	if r.Launcher != "" {
		cfg.Launcher = r.Launcher
	}
	if r.Workers != 0 {
		cfg.Workers = r.Workers
	}
	if r.Machinefile != "" {
		cfg.Machinefile = r.Machinefile
	}
	if r.Wrapper != "" {
		cfg.WrapperScript = r.Wrapper
	}
	if r.Report != "" {
		cfg.ReportPath = r.Report
	}
	if len(r.EnvSpecs) > 0 {
		flagEnv, err := env.ParseSpecs(r.EnvSpecs)
		if err != nil {
			return model.PipelineConfig{}, fmt.Errorf("invalid env: %w: %w", err, model.ErrNotValid)
		}
		cfg.Env = env.MergeMaps(cfg.Env, flagEnv)
	}

	if err := cfg.Validate(); err != nil {
		return model.PipelineConfig{}, fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	return cfg, nil
}

// Repository returns the run history repository and its close function.
func (r *RootCommand) Repository(ctx context.Context) (storage.RunRepository, func(), error) {
	if r.NoHistory {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: r.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, func() {}, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			r.Logger.Warningf("Could not close repository: %s", err)
		}
	}, nil
}

// Supervisor returns a task supervisor recording on the run history. The
// close function gives the detached tasks a grace period to finish before
// recording them as abandoned.
func (r *RootCommand) Supervisor(ctx context.Context) (*supervisor.Supervisor, func(), error) {
	repo, closeRepo, err := r.Repository(ctx)
	if err != nil {
		return nil, nil, err
	}

	sup, err := supervisor.New(supervisor.Config{
		Repository: repo,
		Logger:     r.Logger,
	})
	if err != nil {
		closeRepo()
		return nil, nil, fmt.Errorf("could not create supervisor: %w", err)
	}

	return sup, func() {
		ctx, cancel := context.WithTimeout(context.Background(), detachedTaskGrace)
		defer cancel()
		if err := sup.Close(ctx); err != nil {
			r.Logger.Warningf("Tasks left running: %s", err)
		}
		closeRepo()
	}, nil
}

// Styles returns the output styles.
func (r *RootCommand) Styles() printer.Styles {
	return printer.NewStyles(r.Stdout, !r.NoColor)
}

// TaskListener returns a terminal listener for a task.
func (r *RootCommand) TaskListener(description, linePrefix string) *printer.TaskListener {
	return printer.NewTaskListener(printer.TaskListenerConfig{
		Out:          r.Stdout,
		Description:  description,
		LinePrefix:   linePrefix,
		ShowProgress: !r.NoProgress,
		Styles:       r.Styles(),
	})
}
