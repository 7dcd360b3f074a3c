package printer

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// TaskListenerConfig is the configuration of a TaskListener.
type TaskListenerConfig struct {
	Out io.Writer
	// Description is shown next to the progress bar.
	Description string
	// LinePrefix is prepended to every task log line.
	LinePrefix string
	// ShowProgress renders a progress bar, otherwise progress is printed as lines.
	ShowProgress bool
	Styles       Styles
}

// TaskListener prints the events of a supervised task on a terminal.
type TaskListener struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	desc   string
	bar    *progressbar.ProgressBar
	styles Styles
	last   int
}

// NewTaskListener returns a new task listener.
func NewTaskListener(cfg TaskListenerConfig) *TaskListener {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	l := &TaskListener{
		out:    cfg.Out,
		prefix: cfg.LinePrefix,
		desc:   cfg.Description,
		styles: cfg.Styles,
		last:   -1,
	}

	if cfg.ShowProgress {
		l.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(cfg.Out),
			progressbar.OptionSetDescription(cfg.Description),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	return l
}

// OnLog prints a task log line.
func (l *TaskListener) OnLog(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bar != nil {
		_ = l.bar.Clear()
	}
	fmt.Fprintf(l.out, "%s%s\n", l.prefix, line)
}

// OnProgress updates the task progress.
func (l *TaskListener) OnProgress(percent int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if percent == l.last {
		return
	}
	l.last = percent

	if l.bar != nil {
		_ = l.bar.Set(percent)
		return
	}
	fmt.Fprintf(l.out, "%s %d%%\n", l.styles.Muted.Render(l.desc), percent)
}

// Done finishes the progress output, it must be called once the task ended.
func (l *TaskListener) Done() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bar == nil {
		return
	}
	_ = l.bar.Exit()
	fmt.Fprintln(l.out)
}
