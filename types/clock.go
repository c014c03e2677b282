package types

import "time"

// Clock returns the current time. Tests swap it for a fixed or stepping clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }
