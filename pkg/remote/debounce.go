package remote

import (
	"sync"
	"time"
)

// Debounce states. Each trigger generation moves idle → pending and then
// to fired or cancelled; a new trigger while pending cancels the old
// generation and starts a fresh one.
type debounceState int

const (
	stateIdle debounceState = iota
	statePending
)

// Debouncer coalesces bursts of rapid input changes into one downstream
// call per quiet period. The manual validate-now path uses Flush to run
// the pending call immediately instead of waiting out the delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	state   debounceState
	gen     int64
	pending func()
}

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the quiet period. A call while a
// previous fn is still pending replaces it and restarts the clock.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.state = statePending
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
	d.mu.Unlock()
}

func (d *Debouncer) fire(gen int64) {
	d.mu.Lock()
	if gen != d.gen || d.state != statePending {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.state = stateIdle
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush runs the pending call immediately, if any. The validate-now path.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.state != statePending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	fn := d.pending
	d.pending = nil
	d.state = stateIdle
	d.gen++
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel drops the pending call without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
	d.state = stateIdle
	d.gen++
}

// Pending reports whether a call is waiting out the quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == statePending
}
