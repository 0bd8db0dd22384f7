// Package debounce coalesces bursts of calls into one invocation per quiet period.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once wait has elapsed since the last Call.
// Every Call cancels the pending run and reschedules it.
type Debouncer struct {
	wait time.Duration
	fn   func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New returns a Debouncer for fn.
func New(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Call schedules fn, replacing any run that has not fired yet.
func (d *Debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

// Cancel drops the pending run without running it and reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	pending := d.timer.Stop()
	d.timer = nil
	return pending
}

// Stop cancels the pending run; later calls are ignored.
func (d *Debouncer) Stop() {
	d.Cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
