package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// Clock supplies wall time and scheduled callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the production clock backed by the time package.
// Callbacks run on their own goroutine, as with time.AfterFunc.
type Real struct{}

// Now returns the current wall time.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f after d.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
