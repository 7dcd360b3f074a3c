package worker_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/worker"
)

func collect(events <-chan model.Event) []model.Event {
	var got []model.Event
	for e := range events {
		got = append(got, e)
	}
	return got
}

func TestGo(t *testing.T) {
	tests := map[string]struct {
		fn        func(s *worker.Stream[string])
		expEvents []model.Event
	}{
		"Events should be delivered in emission order ending with the completion": {
			fn: func(s *worker.Stream[string]) {
				s.Log("starting")
				s.Progress(10)
				s.Logf("step %d", 2)
				s.Progress(100)
				s.Complete("ok")
			},
			expEvents: []model.Event{
				model.LogLine{Text: "starting"},
				model.Progress{Percent: 10},
				model.LogLine{Text: "step 2"},
				model.Progress{Percent: 100},
				model.Completion[string]{Result: "ok"},
			},
		},

		"Events after the terminal event should be ignored": {
			fn: func(s *worker.Stream[string]) {
				s.Fail(errors.New("boom"))
				s.Log("late")
				s.Progress(50)
				s.Complete("late")
				s.Fail(errors.New("late"))
			},
			expEvents: []model.Event{
				model.Failure{Err: errors.New("boom")},
			},
		},

		"Decreasing progress should be dropped and out of range clamped": {
			fn: func(s *worker.Stream[string]) {
				s.Progress(40)
				s.Progress(30)
				s.Progress(140)
				s.Complete("ok")
			},
			expEvents: []model.Event{
				model.Progress{Percent: 40},
				model.Progress{Percent: 100},
				model.Completion[string]{Result: "ok"},
			},
		},

		"A worker returning without a terminal event should fail": {
			fn: func(s *worker.Stream[string]) {
				s.Log("forgot")
			},
			expEvents: []model.Event{
				model.LogLine{Text: "forgot"},
				model.Failure{Err: errors.New("worker finished without a result")},
			},
		},

		"A panicking worker should fail": {
			fn: func(s *worker.Stream[string]) {
				panic("oops")
			},
			expEvents: []model.Event{
				model.Failure{Err: errors.New("worker panicked: oops")},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := collect(worker.Go(log.Noop, test.fn))
			assert.Equal(t, test.expEvents, got)
		})
	}
}

func TestStreamFailWithNilError(t *testing.T) {
	got := collect(worker.Go(log.Noop, func(s *worker.Stream[[]string]) {
		s.Fail(nil)
	}))

	require.Len(t, got, 1)
	f, ok := got[0].(model.Failure)
	require.True(t, ok)
	assert.Error(t, f.Err)
}

func TestStartGuard(t *testing.T) {
	var g worker.StartGuard

	assert.NoError(t, g.Start())
	assert.ErrorIs(t, g.Start(), model.ErrAlreadyStarted)
}
