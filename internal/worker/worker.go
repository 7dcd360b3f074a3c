// Package worker has the event plumbing shared by the background task workers.
//
// A worker runs on its own goroutine and reports through a channel of
// model.Event: zero or more LogLine and Progress events followed by exactly
// one Completion or Failure, after which the channel is closed.
package worker

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/progress"
)

// Worker is a background task.
type Worker interface {
	// Kind returns the task kind of the worker.
	Kind() model.TaskKind
	// Start runs the task asynchronously and returns its event stream.
	// A worker instance can only be started once.
	Start() (<-chan model.Event, error)
}

// eventsBufferSize is the number of events a worker can emit ahead of its consumer.
const eventsBufferSize = 256

var errNoResult = errors.New("worker finished without a result")

// Stream emits the events of a single task. It has a single producer, it
// must not be used from more than one goroutine.
type Stream[T any] struct {
	events  chan model.Event
	tracker progress.Tracker
	closed  bool
	logger  log.Logger
}

// NewStream returns a new Stream.
func NewStream[T any](logger log.Logger) *Stream[T] {
	if logger == nil {
		logger = log.Noop
	}

	return &Stream[T]{
		events: make(chan model.Event, eventsBufferSize),
		logger: logger,
	}
}

// Events returns the channel the events are delivered on.
func (s *Stream[T]) Events() <-chan model.Event { return s.events }

// Closed returns true once a terminal event has been emitted.
func (s *Stream[T]) Closed() bool { return s.closed }

// Log emits a log line.
func (s *Stream[T]) Log(text string) {
	s.emit(model.LogLine{Text: text})
}

// Logf emits a formatted log line.
func (s *Stream[T]) Logf(format string, args ...any) {
	s.Log(fmt.Sprintf(format, args...))
}

// Progress emits a progress percent. Values are clamped to [0,100] and the ones
// lower than a previous value are dropped.
func (s *Stream[T]) Progress(percent int) {
	if s.closed {
		return
	}

	p, ok := s.tracker.Next(percent)
	if !ok {
		s.logger.Debugf("Dropped decreasing progress %d (last %d)", percent, p)
		return
	}
	s.emit(model.Progress{Percent: p})
}

// LastProgress returns the last emitted progress percent.
func (s *Stream[T]) LastProgress() int { return s.tracker.Last() }

// Complete emits the completion terminal event and closes the stream.
func (s *Stream[T]) Complete(result T) {
	s.terminate(model.Completion[T]{Result: result})
}

// Fail emits the failure terminal event and closes the stream.
func (s *Stream[T]) Fail(err error) {
	if err == nil {
		err = errNoResult
	}
	s.terminate(model.Failure{Err: err})
}

func (s *Stream[T]) terminate(e model.Event) {
	if s.closed {
		s.logger.Warningf("Ignoring terminal event on a finished task: %T", e)
		return
	}

	s.events <- e
	s.closed = true
	close(s.events)
}

func (s *Stream[T]) emit(e model.Event) {
	if s.closed {
		s.logger.Debugf("Ignoring event on a finished task: %T", e)
		return
	}
	s.events <- e
}

// Go runs fn on a new goroutine with a fresh stream and returns its events.
// If fn returns without a terminal event, or panics, the task fails, so a
// stream always ends with exactly one terminal event.
func Go[T any](logger log.Logger, fn func(s *Stream[T])) <-chan model.Event {
	s := NewStream[T](logger)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.Fail(fmt.Errorf("worker panicked: %v", r))
				return
			}
			if !s.closed {
				s.Fail(errNoResult)
			}
		}()

		fn(s)
	}()

	return s.Events()
}

// StartGuard makes a worker instance single use.
type StartGuard struct {
	started atomic.Bool
}

// Start returns model.ErrAlreadyStarted if it was already called.
func (g *StartGuard) Start() error {
	if !g.started.CompareAndSwap(false, true) {
		return model.ErrAlreadyStarted
	}
	return nil
}
