package reconcile

import "time"

// Timer is a cancel handle for a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports false if the callback already ran or was queued.
	Stop() bool
}

// Clock supplies time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Dispatcher runs fn on the goroutine that owns the Engine.
// Timer callbacks arrive on arbitrary goroutines and must go through it.
type Dispatcher func(fn func())

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Immediate is a Dispatcher that runs fn on the calling goroutine.
// Only for callers that already serialize access to the Engine.
func Immediate(fn func()) { fn() }
