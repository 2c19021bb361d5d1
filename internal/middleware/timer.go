package middleware

import (
	"context"
	"time"
)

// TimerCallback is invoked by the executor when a timer is due. ctx is the
// context passed to SpinSome. sinceLast is the time elapsed since the
// previous call, or since creation for the first call.
type TimerCallback func(ctx context.Context, t *Timer, sinceLast time.Duration)

// Timer is a periodic trigger dispatched by an Executor.
//
// Fires are scheduled on a fixed grid: the next fire is the previous
// scheduled time plus the period. Periods missed while the executor was busy
// are skipped, not replayed.
type Timer struct {
	clock    Clock
	period   time.Duration
	callback TimerCallback

	next     time.Time
	last     time.Time
	canceled bool
}

func newTimer(clock Clock, period time.Duration, callback TimerCallback) (*Timer, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	now := clock.Now()
	return &Timer{
		clock:    clock,
		period:   period,
		callback: callback,
		next:     now.Add(period),
		last:     now,
	}, nil
}

// Period returns the timer period.
func (t *Timer) Period() time.Duration { return t.period }

// Cancel stops the timer from firing. Executors skip canceled timers.
func (t *Timer) Cancel() {
	if t != nil {
		t.canceled = true
	}
}

// Canceled reports whether Cancel has been called.
func (t *Timer) Canceled() bool { return t.canceled }

// Fini cancels the timer.
func (t *Timer) Fini() error {
	if t == nil {
		return ErrNotInitialized
	}
	t.Cancel()
	return nil
}

// until returns how long until the timer is due (<= 0 when ready).
func (t *Timer) until(now time.Time) time.Duration {
	return t.next.Sub(now)
}

// ready reports whether the timer should fire at now.
func (t *Timer) ready(now time.Time) bool {
	return !t.canceled && !now.Before(t.next)
}

// fire advances the schedule and runs the callback.
func (t *Timer) fire(ctx context.Context, now time.Time) {
	sinceLast := now.Sub(t.last)
	t.last = now

	t.next = t.next.Add(t.period)
	if !t.next.After(now) {
		missed := now.Sub(t.next)/t.period + 1
		t.next = t.next.Add(missed * t.period)
	}

	if t.callback != nil {
		t.callback(ctx, t, sinceLast)
	}
}
