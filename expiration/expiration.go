// This file defines how cache entries go stale over time.

package expiration

import "time"

/*
Strategy is the interface that all freshness rules must follow. Instead of hard-coding
the rule into the store, we define a strategy so it can be swapped easily.

A strategy never deletes anything. Stale entries stay readable because the sync client
falls back to them when the network path fails.
*/
type Strategy interface {

	// IsFresh reports whether an entry written at writtenAt is still fresh at now
	// for the given time-to-live.
	IsFresh(writtenAt time.Time, ttl time.Duration, now time.Time) bool
}
