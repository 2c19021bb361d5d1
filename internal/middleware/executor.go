package middleware

import (
	"context"
	"time"
)

// Executor dispatches ready timers within a caller-supplied time budget.
//
// An executor is driven from a single goroutine; callbacks run on the
// goroutine calling SpinSome.
type Executor struct {
	clock    Clock
	capacity int
	timers   []*Timer
}

// AddTimer registers t with the executor.
func (e *Executor) AddTimer(t *Timer) error {
	if e == nil || t == nil {
		return ErrNotInitialized
	}
	if len(e.timers) >= e.capacity {
		return ErrExecutorFull
	}
	e.timers = append(e.timers, t)
	return nil
}

// Handles returns the number of registered handles.
func (e *Executor) Handles() int {
	if e == nil {
		return 0
	}
	return len(e.timers)
}

// SpinSome waits up to timeout for the earliest timer to become due, then
// runs every ready timer's callback once. It returns early as soon as work
// is ready and never blocks longer than timeout. A done ctx ends the wait
// with ctx.Err().
func (e *Executor) SpinSome(ctx context.Context, timeout time.Duration) error {
	if e == nil {
		return ErrNotInitialized
	}

	wait := timeout
	now := e.clock.Now()
	for _, t := range e.timers {
		if t.canceled {
			continue
		}
		if d := t.until(now); d < wait {
			wait = d
		}
	}

	if wait > 0 {
		if err := e.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		now = e.clock.Now()
	}

	for _, t := range e.timers {
		if t.ready(now) {
			t.fire(ctx, now)
		}
	}
	return nil
}
