// Package supervisor owns the background task workers. It keeps a single
// slot per task kind, routes worker events to a listener and records every
// run in the run history.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/storage"
	"github.com/slok/mpifilter/internal/worker"
)

// Listener receives the non terminal events of a supervised task. It's called
// from the goroutine that called Run, in emission order.
type Listener interface {
	OnLog(line string)
	OnProgress(percent int)
}

// ListenerFuncs is a Listener built from functions, nil functions ignore the event.
type ListenerFuncs struct {
	Log      func(line string)
	Progress func(percent int)
}

func (l ListenerFuncs) OnLog(line string) {
	if l.Log != nil {
		l.Log(line)
	}
}

func (l ListenerFuncs) OnProgress(percent int) {
	if l.Progress != nil {
		l.Progress(percent)
	}
}

var errClosedWithoutResult = errors.New("task event stream closed without a result")

// ErrAbandoned is recorded for the detached tasks still running when the supervisor is closed.
var ErrAbandoned = errors.New("task abandoned, it was still running when the supervisor closed")

// Config is the configuration for the supervisor.
type Config struct {
	// Repository is where runs are recorded, optional.
	Repository storage.RunRepository
	Logger     log.Logger
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "supervisor.Supervisor"})
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Supervisor runs workers, at most one per task kind at the same time.
type Supervisor struct {
	mu       sync.Mutex
	busy     map[model.TaskKind]bool
	detached map[string]*recorder
	wg       sync.WaitGroup
	repo     storage.RunRepository
	logger   log.Logger
	now      func() time.Time
}

// New returns a new supervisor.
func New(cfg Config) (*Supervisor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Supervisor{
		busy:     map[model.TaskKind]bool{},
		detached: map[string]*recorder{},
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// Busy returns true while a task of the kind is running.
func (s *Supervisor) Busy(kind model.TaskKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[kind]
}

func (s *Supervisor) acquire(kind model.TaskKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy[kind] {
		return fmt.Errorf("%s task: %w", kind, model.ErrTaskRunning)
	}
	s.busy[kind] = true
	return nil
}

func (s *Supervisor) release(kind model.TaskKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, kind)
}

// Close waits for the detached tasks to finish. When ctx ends first, the
// tasks still running are recorded as failed with ErrAbandoned and an error
// is returned. Their processes are not stopped.
//
// The supervisor must not run tasks after Close.
func (s *Supervisor) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	abandoned := make([]*recorder, 0, len(s.detached))
	for _, rec := range s.detached {
		abandoned = append(abandoned, rec)
	}
	s.mu.Unlock()

	n := 0
	for _, rec := range abandoned {
		if rec.finish(context.WithoutCancel(ctx), s.now().UTC(), nil, ErrAbandoned) {
			s.logger.Warningf("Abandoned %s task %s", rec.run.Kind, rec.run.ID)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return fmt.Errorf("%d tasks abandoned: %w", n, ctx.Err())
}

// Run starts the worker and blocks until its terminal event, dispatching the
// log and progress events to the listener. It returns the completion result
// or the failure error.
//
// If ctx ends first Run returns the context error. The worker is not stopped,
// it keeps running detached and its kind stays busy until it finishes.
func Run[T any](ctx context.Context, s *Supervisor, w worker.Worker, l Listener) (T, error) {
	var zero T
	if l == nil {
		l = ListenerFuncs{}
	}

	kind := w.Kind()
	if err := s.acquire(kind); err != nil {
		return zero, err
	}

	events, err := w.Start()
	if err != nil {
		s.release(kind)
		return zero, fmt.Errorf("could not start %s task: %w", kind, err)
	}

	recCtx := context.WithoutCancel(ctx)
	rec := s.newRecorder(recCtx, w)
	logger := s.logger.WithValues(log.Kv{"kind": kind, "run-id": rec.run.ID})
	logger.Infof("Task started")

	for {
		select {
		case <-ctx.Done():
			logger.Warningf("Stopped waiting for task: %s", ctx.Err())
			s.detach(rec)
			go s.drain(recCtx, kind, events, rec)
			return zero, ctx.Err()

		case ev, ok := <-events:
			if !ok {
				s.finish(recCtx, kind, rec, nil, errClosedWithoutResult)
				return zero, errClosedWithoutResult
			}

			switch e := ev.(type) {
			case model.LogLine:
				l.OnLog(e.Text)
			case model.Progress:
				rec.progress(e.Percent)
				l.OnProgress(e.Percent)
			case model.Completion[T]:
				s.finish(recCtx, kind, rec, e.Result, nil)
				logger.Infof("Task done")
				return e.Result, nil
			case model.Failure:
				s.finish(recCtx, kind, rec, nil, e.Err)
				logger.Warningf("Task failed: %s", e.Err)
				return zero, e.Err
			default:
				if model.IsTerminal(ev) {
					err := fmt.Errorf("unexpected %T terminal event for a %T result", ev, zero)
					s.finish(recCtx, kind, rec, nil, err)
					return zero, err
				}
				logger.Debugf("Ignoring unknown event %T", ev)
			}
		}
	}
}

func (s *Supervisor) detach(rec *recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached[rec.run.ID] = rec
	s.wg.Add(1)
}

// drain consumes the events of a task nobody waits for anymore and frees its
// slot once it finishes.
func (s *Supervisor) drain(ctx context.Context, kind model.TaskKind, events <-chan model.Event, rec *recorder) {
	defer func() {
		s.mu.Lock()
		delete(s.detached, rec.run.ID)
		s.mu.Unlock()
		s.wg.Done()
	}()

	for ev := range events {
		switch e := ev.(type) {
		case model.Progress:
			rec.progress(e.Percent)
		case model.Failure:
			s.finish(ctx, kind, rec, nil, e.Err)
			return
		default:
			if model.IsTerminal(ev) {
				s.finish(ctx, kind, rec, resultOf(ev), nil)
				return
			}
		}
	}
	s.finish(ctx, kind, rec, nil, errClosedWithoutResult)
}

func (s *Supervisor) finish(ctx context.Context, kind model.TaskKind, rec *recorder, result any, err error) {
	rec.finish(ctx, s.now().UTC(), result, err)
	s.release(kind)
}

// resultOf extracts the result of a completion event of any result type.
func resultOf(ev model.Event) any {
	if r, ok := ev.(interface{ ResultValue() any }); ok {
		return r.ResultValue()
	}
	return nil
}

// recorder tracks a single run in the run history. Recording failures don't
// affect the task, they are only logged. A run is finished once.
type recorder struct {
	mu       sync.Mutex
	repo     storage.RunRepository
	logger   log.Logger
	run      model.TaskRun
	finished bool
}

func (s *Supervisor) newRecorder(ctx context.Context, w worker.Worker) *recorder {
	rec := &recorder{
		repo:   s.repo,
		logger: s.logger,
		run: model.TaskRun{
			ID:        ulid.Make().String(),
			Kind:      w.Kind(),
			Status:    model.TaskStatusRunning,
			CreatedAt: s.now().UTC(),
		},
	}
	if rec.repo == nil {
		return rec
	}

	if p, ok := w.(interface{ Params() any }); ok {
		rec.run.Params = encode(p.Params())
	}

	if err := rec.repo.CreateRun(ctx, rec.run); err != nil {
		rec.logger.Warningf("Could not record %s run: %s", rec.run.Kind, err)
		rec.repo = nil
	}

	return rec
}

func (r *recorder) progress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Progress = percent
}

// finish records the outcome, it returns false if the run was already finished.
func (r *recorder) finish(ctx context.Context, at time.Time, result any, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.finished = true

	r.run.FinishedAt = &at
	r.run.Status = model.TaskStatusDone
	if err != nil {
		r.run.Status = model.TaskStatusFailed
		r.run.Error = err.Error()
	} else if result != nil {
		r.run.Result = encode(result)
	}

	if r.repo == nil {
		return true
	}
	if err := r.repo.UpdateRun(ctx, r.run); err != nil {
		r.logger.Warningf("Could not record %s run %s result: %s", r.run.Kind, r.run.ID, err)
	}
	return true
}

// encode returns strings as they are and JSON for anything else.
func encode(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
