package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/mpifilter/internal/model"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
	styles Styles
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer, styles Styles) *TablePrinter {
	return &TablePrinter{writer: w, styles: styles}
}

// PrintRuns prints task runs in a table format.
func (t *TablePrinter) PrintRuns(runs []model.TaskRun) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tPROGRESS\tDURATION\tCREATED")

	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = FormatDuration(r.FinishedAt.Sub(r.CreatedAt))
		}
		// Status is not styled, escape codes break the tabwriter alignment.
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\n", r.ID, r.Kind, r.Status, r.Progress, duration, TimeAgo(r.CreatedAt))
	}

	return nil
}

// PrintRun prints the details of a task run.
func (t *TablePrinter) PrintRun(run model.TaskRun) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", run.ID)
	fmt.Fprintf(t.writer, "Kind:       %s\n", run.Kind)
	fmt.Fprintf(t.writer, "Status:     %s\n", t.styles.RunStatus(run.Status))
	fmt.Fprintf(t.writer, "Progress:   %d%%\n", run.Progress)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(run.CreatedAt))

	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*run.FinishedAt))
		fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(run.FinishedAt.Sub(run.CreatedAt)))
	}
	if run.Params != "" {
		fmt.Fprintf(t.writer, "Params:     %s\n", run.Params)
	}
	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", t.styles.Error.Render(run.Error))
	}
	if run.Result != "" {
		fmt.Fprintf(t.writer, "Result:\n%s\n", strings.TrimRight(run.Result, "\n"))
	}

	return nil
}

// PrintChecks prints preflight check results followed by a summary line.
func (t *TablePrinter) PrintChecks(results []model.CheckResult) error {
	for _, r := range results {
		fmt.Fprintf(t.writer, "  %s %-20s %s\n", t.styles.CheckIcon(r.Status), r.ID, r.Message)
	}

	_, warnings, errors := model.CountByStatus(results)
	fmt.Fprintln(t.writer)
	if errors == 0 && warnings == 0 {
		fmt.Fprintln(t.writer, t.styles.OK.Render("All checks passed!"))
		return nil
	}

	var summary []string
	if errors > 0 {
		summary = append(summary, t.styles.Error.Render(fmt.Sprintf("%d error(s)", errors)))
	}
	if warnings > 0 {
		summary = append(summary, t.styles.Warning.Render(fmt.Sprintf("%d warning(s)", warnings)))
	}
	fmt.Fprintln(t.writer, strings.Join(summary, ", "))

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
