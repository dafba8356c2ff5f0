package client

import "time"

// Clock schedules the debounce, decay and throttle windows of a session.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable single-shot timer.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is backed by the time package.
var SystemClock Clock = systemClock{}

// debouncer runs the last triggered function once no trigger arrived for wait.
// It is not safe for concurrent use; the session calls it from its event loop only.
type debouncer struct {
	clock Clock
	wait  time.Duration
	timer Timer
	gen   uint64
}

func newDebouncer(clock Clock, wait time.Duration) *debouncer {
	return &debouncer{clock: clock, wait: wait}
}

// Trigger cancels any pending run and schedules f.
func (d *debouncer) Trigger(f func()) {
	d.Cancel()
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() {
		// A timer that fired after Cancel must not run.
		if gen != d.gen {
			return
		}
		d.timer = nil
		f()
	})
}

// Cancel drops the pending run, if any.
func (d *debouncer) Cancel() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
