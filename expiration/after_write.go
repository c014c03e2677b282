package expiration

import "time"

/*
AfterWrite implements "expire after write": an entry is fresh for exactly ttl after it
was written. Reads do not extend it.

	fresh  <=>  now - writtenAt < ttl

A non-positive ttl means the entry is never fresh. An entry stamped in the future (clock
moved backwards) is treated as fresh until the clock catches up.
*/
type AfterWrite struct{}

// IsFresh checks whether the entry is still inside its TTL window.
func (AfterWrite) IsFresh(writtenAt time.Time, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || writtenAt.IsZero() {
		return false
	}
	return now.Sub(writtenAt) < ttl
}
