package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/mpifilter/internal/model"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// runListItem represents a run in the list output (subset of fields).
type runListItem struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// runOutput represents the full run output.
type runOutput struct {
	runListItem
	Params json.RawMessage `json:"params,omitempty"`
	Result string          `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

func newRunListItem(r model.TaskRun) runListItem {
	item := runListItem{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Status:    string(r.Status),
		Progress:  r.Progress,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		item.FinishedAt = &utcTime
	}
	return item
}

// PrintRuns prints task runs in JSON format with a subset of fields.
func (j *JSONPrinter) PrintRuns(runs []model.TaskRun) error {
	items := make([]runListItem, len(runs))
	for i, r := range runs {
		items[i] = newRunListItem(r)
	}
	return j.encode(items)
}

// PrintRun prints the details of a task run in JSON format.
func (j *JSONPrinter) PrintRun(run model.TaskRun) error {
	output := runOutput{
		runListItem: newRunListItem(run),
		Result:      run.Result,
		Error:       run.Error,
	}
	// Params are recorded as JSON, embed them as an object when valid.
	if run.Params != "" && json.Valid([]byte(run.Params)) {
		output.Params = json.RawMessage(run.Params)
	}
	return j.encode(output)
}

// PrintChecks prints preflight check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	items := make([]checkOutput, len(results))
	for i, r := range results {
		items[i] = checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
