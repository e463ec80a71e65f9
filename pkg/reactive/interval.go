package reactive

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task is a cancellable repeating task started by Interval.
type Task struct {
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	ticks   atomic.Int64
}

// IntervalOption configures Interval.
type IntervalOption func(*intervalConfig)

type intervalConfig struct {
	immediate bool
}

// IntervalImmediate runs the first tick immediately instead of after d.
func IntervalImmediate() IntervalOption {
	return func(cfg *intervalConfig) {
		cfg.immediate = true
	}
}

// Interval runs fn every d on its own goroutine until the returned task is
// stopped. Ticks never overlap. Return task.Stop from an effect to tie the
// task to the owner:
//
//	reactive.UseEffect(o, func() reactive.Cleanup {
//	    return reactive.Interval(700*time.Millisecond, poll).Stop
//	}, key)
func Interval(d time.Duration, fn func(), opts ...IntervalOption) *Task {
	var cfg intervalConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Task{done: make(chan struct{})}

	go func() {
		if cfg.immediate {
			t.tick(fn)
		}

		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.tick(fn)
			case <-t.done:
				return
			}
		}
	}()

	return t
}

func (t *Task) tick(fn func()) {
	if t.stopped.Load() {
		return
	}
	t.ticks.Add(1)
	fn()
}

// Stop cancels the task. It is safe to call more than once and from inside
// fn; only the first call has an effect. A tick already running when Stop is
// called finishes, so tick bodies that write state re-check Stopped after
// any blocking read.
func (t *Task) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.done)
	})
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	return t.stopped.Load()
}

// Ticks returns how many ticks have run.
func (t *Task) Ticks() int64 {
	return t.ticks.Load()
}
