package storage

import (
	"context"

	"github.com/slok/mpifilter/internal/model"
)

// ListRunsOpts filters the listed task runs.
type ListRunsOpts struct {
	Kind   *model.TaskKind
	Status *model.TaskStatus
	// Limit is the max number of runs returned, 0 means no limit.
	Limit int
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name RunRepository

// RunRepository is the interface for task run history persistence.
type RunRepository interface {
	CreateRun(ctx context.Context, r model.TaskRun) error
	UpdateRun(ctx context.Context, r model.TaskRun) error
	GetRun(ctx context.Context, id string) (*model.TaskRun, error)
	// ListRuns returns the runs, most recent first.
	ListRuns(ctx context.Context, opts ListRunsOpts) ([]model.TaskRun, error)
}

// Match returns true if the run satisfies the filters (ignoring the limit).
func (o ListRunsOpts) Match(r model.TaskRun) bool {
	if o.Kind != nil && r.Kind != *o.Kind {
		return false
	}
	if o.Status != nil && r.Status != *o.Status {
		return false
	}
	return true
}
