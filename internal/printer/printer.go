package printer

import "github.com/slok/mpifilter/internal/model"

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintRuns(runs []model.TaskRun) error
	PrintRun(run model.TaskRun) error
	PrintChecks(results []model.CheckResult) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
)
