package mpifilter_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intmpifilter "github.com/slok/mpifilter/test/integration/mpifilter"
)

// runItem matches the JSON output of `mpifilter history --format json`.
type runItem struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// runDetail matches the JSON output of `mpifilter history <id> --format json`.
type runDetail struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Status string         `json:"status"`
	Params map[string]any `json:"params"`
	Result string         `json:"result"`
}

// checkItem matches the JSON output of `mpifilter doctor --format json`.
type checkItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func newInputDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("img"), 0644))
	}
	return dir
}

func TestIntegrationPipeline(t *testing.T) {
	config := intmpifilter.NewConfig(t)
	d := intmpifilter.NewDeployment(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	input := newInputDir(t, "a.bmp", "b.BMP", "notes.txt")

	stdout, stderr, err := intmpifilter.RunCmd(ctx, config, d, "pipeline", input, "-k", "4")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, string(stdout), "> -> [a.bmp]")
	assert.Contains(t, string(stdout), "kernel 5")

	staged, err := os.ReadDir(d.StagingDir)
	require.NoError(t, err)
	assert.Len(t, staged, 2)

	// History.
	stdout, stderr, err = intmpifilter.RunCmd(ctx, config, d, "history", "--format", "json")
	require.NoError(t, err, "stderr: %s", stderr)

	var runs []runItem
	require.NoError(t, json.Unmarshal(stdout, &runs))
	require.Len(t, runs, 2)
	var processID string
	for _, r := range runs {
		assert.Equal(t, "done", r.Status)
		if r.Kind == "process" {
			processID = r.ID
		}
	}
	require.NotEmpty(t, processID)

	stdout, stderr, err = intmpifilter.RunCmd(ctx, config, d, "history", processID, "--format", "json")
	require.NoError(t, err, "stderr: %s", stderr)

	var detail runDetail
	require.NoError(t, json.Unmarshal(stdout, &detail))
	assert.Equal(t, processID, detail.ID)
	assert.Contains(t, detail.Result, "kernel 5")
	assert.Contains(t, detail.Params, "command")
}

func TestIntegrationStageWithoutImages(t *testing.T) {
	config := intmpifilter.NewConfig(t)
	d := intmpifilter.NewDeployment(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, _, err := intmpifilter.RunCmd(ctx, config, d, "stage", newInputDir(t, "notes.txt"))
	assert.Error(t, err)

	stdout, stderr, err := intmpifilter.RunCmd(ctx, config, d, "history", "--format", "json", "--status", "failed")
	require.NoError(t, err, "stderr: %s", stderr)

	var runs []runItem
	require.NoError(t, json.Unmarshal(stdout, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "copy", runs[0].Kind)
}

func TestIntegrationDoctor(t *testing.T) {
	config := intmpifilter.NewConfig(t)
	d := intmpifilter.NewDeployment(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stdout, stderr, err := intmpifilter.RunCmd(ctx, config, d, "doctor", "--format", "json")
	require.NoError(t, err, "stderr: %s", stderr)

	var checks []checkItem
	require.NoError(t, json.Unmarshal(stdout, &checks))
	statuses := map[string]string{}
	for _, c := range checks {
		statuses[c.ID] = c.Status
	}
	assert.Equal(t, map[string]string{
		"launcher":       "ok",
		"wrapper_script": "ok",
		"machinefile":    "ok",
		"staging_dir":    "warning",
	}, statuses)
}
