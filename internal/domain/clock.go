package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake so last_refreshed
// and the as-of date are deterministic.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for summary computation. Pass nil to reset
// to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant from the package clock in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// Today returns the current civil date (UTC midnight) from the package
// clock. It is the default as-of date for a refresh.
func Today() time.Time {
	return DateOnly(Now())
}
