package lib_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mpifilter/pkg/lib"
)

// fakeLauncher prints two unit markers and writes the report.
const fakeLauncher = `#!/bin/sh
printf '%%s\n' '-> [1]' '-> [2]'
echo "filtered with kernel $6" > %q
`

func newDeployment(t *testing.T) lib.PipelineConfig {
	t.Helper()
	dir := t.TempDir()

	report := filepath.Join(dir, "reporte_total.txt")
	launcher := filepath.Join(dir, "mpiexec")
	require.NoError(t, os.WriteFile(launcher, []byte(fmt.Sprintf(fakeLauncher, report)), 0755))

	wrapper := filepath.Join(dir, "wrapper.sh")
	require.NoError(t, os.WriteFile(wrapper, []byte("#!/bin/sh\n"), 0755))

	machinefile := filepath.Join(dir, "machinefile")
	require.NoError(t, os.WriteFile(machinefile, []byte("node1\n"), 0644))

	return lib.PipelineConfig{
		StagingDir:    filepath.Join(dir, "img_gui"),
		Extension:     ".bmp",
		Launcher:      launcher,
		Workers:       2,
		Machinefile:   machinefile,
		WrapperScript: wrapper,
		ReportPath:    report,
		Marker:        "-> [",
		UnitsPerImage: 1,
		KernelSize:    3,
	}
}

func newInputDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("img"), 0644))
	}
	return dir
}

func newTestClient(t *testing.T, pipeline lib.PipelineConfig) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		Pipeline: &pipeline,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    func(t *testing.T) lib.Config
		expErr error
	}{
		"A client with an in-memory history should not need a data dir.": {
			cfg: func(t *testing.T) lib.Config {
				p := newDeployment(t)
				return lib.Config{NoHistory: true, Pipeline: &p}
			},
		},

		"A client with a SQLite history should be created.": {
			cfg: func(t *testing.T) lib.Config {
				p := newDeployment(t)
				return lib.Config{DataDir: t.TempDir(), Pipeline: &p}
			},
		},

		"A client with an invalid pipeline config should fail.": {
			cfg: func(t *testing.T) lib.Config {
				p := newDeployment(t)
				p.Workers = 0
				return lib.Config{NoHistory: true, Pipeline: &p}
			},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, err := lib.New(context.Background(), test.cfg(t))

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestStage(t *testing.T) {
	tests := map[string]struct {
		files     []string
		expCopied []string
		expErr    error
	}{
		"Staging a directory should copy only the images.": {
			files:     []string{"a.bmp", "b.bmp", "notes.txt"},
			expCopied: []string{"a.bmp", "b.bmp"},
		},

		"Staging a directory without images should fail.": {
			files:  []string{"notes.txt"},
			expErr: lib.ErrNoValidImages,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, newDeployment(t))

			var progress []int
			res, err := client.Stage(context.Background(), lib.StageOpts{
				InputDir: newInputDir(t, test.files...),
				Listener: &lib.Listener{OnProgress: func(p int) { progress = append(progress, p) }},
			})

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expCopied, res.Copied)
			require.NotEmpty(t, progress)
			assert.Equal(t, 100, progress[len(progress)-1])
		})
	}
}

func TestProcess(t *testing.T) {
	tests := map[string]struct {
		prepare  func(t *testing.T, p *lib.PipelineConfig)
		opts     lib.ProcessOpts
		expErr   error
		expUnits int
		expCmd   string
	}{
		"Processing should run the launcher with the normalized kernel size.": {
			opts:     lib.ProcessOpts{KernelSize: 6, ExpectedUnits: 2},
			expUnits: 2,
			expCmd:   "7",
		},

		"Processing with a missing wrapper script should fail the preflight.": {
			prepare: func(t *testing.T, p *lib.PipelineConfig) {
				p.WrapperScript = filepath.Join(t.TempDir(), "missing.sh")
			},
			expErr: lib.ErrPreflightFailed,
		},

		"Processing with an out of range kernel size should fail.": {
			opts:   lib.ProcessOpts{KernelSize: 200},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := newDeployment(t)
			if test.prepare != nil {
				test.prepare(t, &p)
			}
			client := newTestClient(t, p)

			res, err := client.Process(context.Background(), test.opts)

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expUnits, res.ExpectedUnits)
			assert.Equal(t, test.expCmd, res.Command[len(res.Command)-1])
			assert.Contains(t, res.Summary, "filtered with kernel "+test.expCmd)
		})
	}
}

func TestPipelineRecordsHistory(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, newDeployment(t))

	var (
		staged   []string
		progress []int
	)
	res, err := client.Pipeline(ctx, lib.PipelineOpts{
		InputDir:      newInputDir(t, "a.bmp", "b.bmp"),
		ExpectedUnits: -1,
		RunListener:   &lib.Listener{OnProgress: func(p int) { progress = append(progress, p) }},
		OnStaged:      func(copied []string) { staged = copied },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.bmp", "b.bmp"}, res.Copied)
	assert.Equal(t, res.Copied, staged)
	assert.Equal(t, []int{50, 100}, progress)
	assert.Contains(t, res.Summary, "filtered with kernel 3")
	assert.False(t, client.Busy(lib.TaskKindCopy))
	assert.False(t, client.Busy(lib.TaskKindProcess))

	runs, err := client.History(ctx, nil)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	kinds := []lib.TaskKind{runs[0].Kind, runs[1].Kind}
	assert.ElementsMatch(t, []lib.TaskKind{lib.TaskKindCopy, lib.TaskKindProcess}, kinds)
	for _, r := range runs {
		assert.Equal(t, lib.TaskStatusDone, r.Status)
		assert.NotNil(t, r.FinishedAt)
	}

	kind := lib.TaskKindProcess
	processRuns, err := client.History(ctx, &lib.HistoryOpts{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, processRuns, 1)

	got, err := client.GetRun(ctx, processRuns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, processRuns[0].ID, got.ID)
	assert.Contains(t, got.Result, "filtered with kernel 3")
}

func TestGetRunMissing(t *testing.T) {
	client := newTestClient(t, newDeployment(t))

	_, err := client.GetRun(context.Background(), "01J0000000000000000000000")
	assert.ErrorIs(t, err, lib.ErrNotFound)
}

func TestDoctor(t *testing.T) {
	p := newDeployment(t)
	p.Machinefile = filepath.Join(t.TempDir(), "missing")
	client := newTestClient(t, p)

	results, err := client.Doctor(context.Background())
	require.NoError(t, err)

	statuses := map[string]lib.CheckStatus{}
	for _, r := range results {
		statuses[r.ID] = r.Status
	}
	assert.Equal(t, map[string]lib.CheckStatus{
		"launcher":       lib.CheckStatusOK,
		"wrapper_script": lib.CheckStatusOK,
		"machinefile":    lib.CheckStatusError,
		"staging_dir":    lib.CheckStatusWarning,
	}, statuses)
}
