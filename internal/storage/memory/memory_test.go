package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/storage"
	"github.com/slok/mpifilter/internal/storage/memory"
)

func runFixture(id string, kind model.TaskKind, createdAt time.Time) model.TaskRun {
	return model.TaskRun{
		ID:        id,
		Kind:      kind,
		Status:    model.TaskStatusRunning,
		Params:    "{}",
		CreatedAt: createdAt,
	}
}

func TestRepositoryCRUD(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  error
	}{
		"Creating and getting a run should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				if err := repo.CreateRun(ctx, runFixture("r1", model.TaskKindCopy, base)); err != nil {
					return err
				}
				got, err := repo.GetRun(ctx, "r1")
				if err != nil {
					return err
				}
				assert.Equal(t, model.TaskKindCopy, got.Kind)
				assert.Equal(t, model.TaskStatusRunning, got.Status)
				return nil
			},
		},

		"Creating a duplicated run should fail with already exists": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				if err := repo.CreateRun(ctx, runFixture("r1", model.TaskKindCopy, base)); err != nil {
					return err
				}
				return repo.CreateRun(ctx, runFixture("r1", model.TaskKindProcess, base))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Getting a missing run should fail with not found": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetRun(ctx, "missing")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Updating a run should store the new state": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := runFixture("r1", model.TaskKindProcess, base)
				if err := repo.CreateRun(ctx, run); err != nil {
					return err
				}

				finished := base.Add(time.Minute)
				run.Status = model.TaskStatusDone
				run.Progress = 100
				run.Result = "ok"
				run.FinishedAt = &finished
				if err := repo.UpdateRun(ctx, run); err != nil {
					return err
				}

				got, err := repo.GetRun(ctx, "r1")
				if err != nil {
					return err
				}
				assert.Equal(t, model.TaskStatusDone, got.Status)
				assert.Equal(t, 100, got.Progress)
				assert.Equal(t, "ok", got.Result)
				require.NotNil(t, got.FinishedAt)
				assert.Equal(t, finished, *got.FinishedAt)
				return nil
			},
		},

		"Updating a missing run should fail with not found": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.UpdateRun(ctx, runFixture("missing", model.TaskKindCopy, base))
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)
			if test.expErr != nil {
				assert.True(t, errors.Is(err, test.expErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepositoryListRuns(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	copyKind := model.TaskKindCopy
	failed := model.TaskStatusFailed

	tests := map[string]struct {
		opts   storage.ListRunsOpts
		expIDs []string
	}{
		"Without filters all runs should be returned most recent first": {
			expIDs: []string{"r4", "r3", "r2", "r1"},
		},

		"Filtering by kind should only return that kind": {
			opts:   storage.ListRunsOpts{Kind: &copyKind},
			expIDs: []string{"r3", "r1"},
		},

		"Filtering by status should only return that status": {
			opts:   storage.ListRunsOpts{Status: &failed},
			expIDs: []string{"r4"},
		},

		"A limit should cut the most recent runs": {
			opts:   storage.ListRunsOpts{Limit: 2},
			expIDs: []string{"r4", "r3"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(t, err)

			for i := 1; i <= 4; i++ {
				kind := model.TaskKindCopy
				if i%2 == 0 {
					kind = model.TaskKindProcess
				}
				run := runFixture(fmt.Sprintf("r%d", i), kind, base.Add(time.Duration(i)*time.Second))
				if i == 4 {
					run.Status = model.TaskStatusFailed
				}
				require.NoError(t, repo.CreateRun(ctx, run))
			}

			runs, err := repo.ListRuns(ctx, test.opts)
			require.NoError(t, err)

			var gotIDs []string
			for _, r := range runs {
				gotIDs = append(gotIDs, r.ID)
			}
			assert.Equal(t, test.expIDs, gotIDs)
		})
	}
}
