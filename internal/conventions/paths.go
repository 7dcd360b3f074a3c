package conventions

import (
	"path/filepath"
	"time"

	"github.com/slok/mpifilter/internal/model"
)

const (
	// DefaultDataDir is the default mpifilter data directory name (relative to home).
	DefaultDataDir = ".mpifilter"
	// DBFile is the run history database filename.
	DBFile = "mpifilter.db"

	// Processing deployment defaults.

	// DefaultBaseDir is the shared directory the processing nodes see.
	DefaultBaseDir = "/mirror/diff_images"
	// DefaultStagingDir is the directory images are staged into before processing.
	DefaultStagingDir = DefaultBaseDir + "/img_gui"
	// DefaultWrapperScript is the script mpiexec runs on every node.
	DefaultWrapperScript = DefaultBaseDir + "/procesador_wrapper.sh"
	// DefaultReportFile is the report the processing program writes when it finishes.
	DefaultReportFile = DefaultBaseDir + "/reporte_total.txt"
	// DefaultMachinefile lists the MPI hosts.
	DefaultMachinefile = "/mirror/machinefile"
	// DefaultLauncher is the MPI launcher binary.
	DefaultLauncher = "mpiexec"
	// DefaultWorkers is the number of MPI processes.
	DefaultWorkers = 13

	// DefaultProcessWaitDelay bounds the wait for the output of a finished
	// process, launchers can leave helpers holding it.
	DefaultProcessWaitDelay = 5 * time.Second

	// Image and progress defaults.

	// DefaultImageExtension is the accepted image extension.
	DefaultImageExtension = ".bmp"
	// DefaultUnitMarker is the output substring printed once per processed unit.
	DefaultUnitMarker = "-> ["
	// DefaultUnitsPerImage is the number of units (filters) run on every image.
	DefaultUnitsPerImage = 6

	// Kernel size bounds, the kernel size is always odd.

	MinKernelSize     = 3
	MaxKernelSize     = 155
	DefaultKernelSize = MinKernelSize
)

// DBPath returns the run history database path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// DefaultPipelineConfig returns the pipeline configuration of the default deployment.
func DefaultPipelineConfig() model.PipelineConfig {
	return model.PipelineConfig{
		StagingDir:    DefaultStagingDir,
		Extension:     DefaultImageExtension,
		Launcher:      DefaultLauncher,
		Workers:       DefaultWorkers,
		Machinefile:   DefaultMachinefile,
		WrapperScript: DefaultWrapperScript,
		ReportPath:    DefaultReportFile,
		Marker:        DefaultUnitMarker,
		UnitsPerImage: DefaultUnitsPerImage,
		KernelSize:    DefaultKernelSize,
	}
}
