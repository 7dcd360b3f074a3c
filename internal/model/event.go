package model

// Event is an event emitted by a task worker. The concrete types are
// LogLine, Progress, Completion and Failure.
type Event interface {
	isEvent()
}

// LogLine is an informational line.
type LogLine struct {
	Text string
}

// Progress is the completion percentage of a task, in [0,100].
type Progress struct {
	Percent int
}

// Completion is the successful terminal event of a task.
type Completion[T any] struct {
	Result T
}

// Failure is the failed terminal event of a task.
type Failure struct {
	Err error
}

func (LogLine) isEvent()       {}
func (Progress) isEvent()      {}
func (Completion[T]) isEvent() {}
func (Failure) isEvent()       {}

type terminal interface {
	Event
	isTerminal()
}

func (Completion[T]) isTerminal() {}
func (Failure) isTerminal()       {}

// ResultValue returns the result as an untyped value.
func (c Completion[T]) ResultValue() any { return c.Result }

// IsTerminal returns true if the event is a Completion or a Failure.
func IsTerminal(e Event) bool {
	_, ok := e.(terminal)
	return ok
}
