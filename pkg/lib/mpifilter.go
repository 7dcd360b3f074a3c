package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/mpifilter/internal/app/doctor"
	"github.com/slok/mpifilter/internal/conventions"
	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/storage"
	"github.com/slok/mpifilter/internal/storage/memory"
	"github.com/slok/mpifilter/internal/storage/sqlite"
	"github.com/slok/mpifilter/internal/supervisor"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} records the run history in
// ~/.mpifilter/mpifilter.db and uses the default processing deployment.
type Config struct {
	// DBPath is the SQLite run history database path.
	// Default: ~/.mpifilter/mpifilter.db.
	DBPath string

	// DataDir is the base directory for mpifilter data.
	// Default: ~/.mpifilter.
	DataDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Pipeline is the staging and processing deployment.
	// Default: [DefaultPipelineConfig].
	Pipeline *PipelineConfig

	// NoHistory keeps the run history in memory only, nothing is written to disk.
	NoHistory bool

	// CloseTimeout is how long [Client.Close] waits for the tasks still running
	// after their caller's context ended. Tasks that don't finish in time are
	// recorded as failed, their processes keep running.
	// Default: 0 (don't wait).
	CloseTimeout time.Duration
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Pipeline == nil {
		p := DefaultPipelineConfig()
		c.Pipeline = &p
	}

	if c.NoHistory {
		return nil
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(c.DataDir)
	}

	return nil
}

// Client is the main SDK entry point for staging and processing images.
//
// All the tasks of a Client share one supervisor, so a Client runs at most one
// copy and one process task at a time. A Client is safe for concurrent use.
type Client struct {
	repo         storage.RunRepository
	sup          *supervisor.Supervisor
	pipeline     model.PipelineConfig
	logger       log.Logger
	closeTimeout time.Duration
	closeFn      func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pipelineCfg := cfg.Pipeline.toInternal()
	if err := pipelineCfg.Validate(); err != nil {
		return nil, mapError(fmt.Errorf("invalid pipeline config: %w", err))
	}

	var (
		repo    storage.RunRepository
		closeFn = func() error { return nil }
	)
	if cfg.NoHistory {
		memRepo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = memRepo
	} else {
		sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = sqliteRepo
		closeFn = sqliteRepo.Close
	}

	sup, err := supervisor.New(supervisor.Config{
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create supervisor: %w", err)
	}

	return &Client{
		repo:         repo,
		sup:          sup,
		pipeline:     pipelineCfg,
		logger:       cfg.Logger,
		closeTimeout: cfg.CloseTimeout,
		closeFn:      closeFn,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.closeTimeout)
	defer cancel()
	if err := c.sup.Close(ctx); err != nil {
		c.logger.Warningf("Tasks left running: %s", err)
	}

	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// Busy returns true while a task of the kind is running on this client.
func (c *Client) Busy(kind TaskKind) bool {
	return c.sup.Busy(model.TaskKind(kind))
}

// Doctor runs the preflight checks of the configured processing deployment.
//
// The returned results are never empty. Check [CheckResult.Status] to know
// whether a check failed.
func (c *Client) Doctor(ctx context.Context) ([]CheckResult, error) {
	svc, err := doctor.NewService(doctor.ServiceConfig{
		Config: c.pipeline,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create doctor service: %w", err)
	}

	return fromInternalCheckResults(svc.Run(ctx)), nil
}
