package shell

import (
	"time"
)

// Clock yields the current instant. Components take it as a dependency so
// tests can pin time; production wiring uses SystemClock.
type Clock func() time.Time

// SystemClock is the production Clock.
func SystemClock() time.Time {
	return time.Now()
}
