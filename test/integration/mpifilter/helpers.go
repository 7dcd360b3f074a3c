package mpifilter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slok/mpifilter/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	// go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("MPIFILTER_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("mpifilter binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "MPIFILTER_INTEGRATION"
		envBinary     = "MPIFILTER_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// fakeLauncher emulates mpiexec: it prints one unit marker per staged
// image and writes the report.
const fakeLauncher = `#!/bin/sh
for f in %[1]q/*; do
  echo "-> [$(basename "$f")]"
done
echo "kernel $6" > %[2]q
`

// Deployment is a fake processing deployment on a temp dir.
type Deployment struct {
	Dir        string
	StagingDir string
	ReportPath string
	DBPath     string
	args       []string
}

// NewDeployment creates a fake processing deployment.
func NewDeployment(t *testing.T) Deployment {
	t.Helper()
	dir := t.TempDir()

	d := Deployment{
		Dir:        dir,
		StagingDir: filepath.Join(dir, "img_gui"),
		ReportPath: filepath.Join(dir, "reporte_total.txt"),
		DBPath:     filepath.Join(dir, "mpifilter.db"),
	}

	launcher := filepath.Join(dir, "mpiexec")
	require.NoError(t, os.WriteFile(launcher, []byte(fmt.Sprintf(fakeLauncher, d.StagingDir, d.ReportPath)), 0755))
	wrapper := filepath.Join(dir, "procesador_wrapper.sh")
	require.NoError(t, os.WriteFile(wrapper, []byte("#!/bin/sh\n"), 0755))
	machinefile := filepath.Join(dir, "machinefile")
	require.NoError(t, os.WriteFile(machinefile, []byte("node1\n"), 0644))

	d.args = []string{
		"--no-progress",
		"--no-color",
		"--db-path", d.DBPath,
		"--staging-dir", d.StagingDir,
		"--launcher", launcher,
		"--workers", "2",
		"--machinefile", machinefile,
		"--wrapper", wrapper,
		"--report", d.ReportPath,
	}

	return d
}

// RunCmd runs an mpifilter command against the deployment.
func RunCmd(ctx context.Context, config Config, d Deployment, args ...string) (stdout, stderr []byte, err error) {
	all := append(append([]string{}, d.args...), args...)
	return testutils.RunMPIFilter(ctx, nil, config.Binary, all, true)
}
