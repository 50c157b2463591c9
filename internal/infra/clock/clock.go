// Package clock abstracts the time operations the governor depends on so
// tests can drive cycle sleeps and deadline measurements deterministically.
package clock

import "time"

// Clock is the subset of the time package used by the control loop, the
// deadline gate and the indicator watcher.
type Clock interface {
	// Now returns the current time. Real clocks include the monotonic
	// reading, so Sub between two Now values is immune to wall-clock steps.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
