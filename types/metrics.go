package types

import "sync/atomic"

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The store and the sync client
call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when a fresh entry is served without touching the network.
	Hit()

	// Miss is called when a key is absent or stale and the caller has to go to the network.
	Miss()

	// Fallback is called when stale data is served because the network path failed.
	Fallback()

	// Write is called after a record has been stored.
	Write()

	// StorageError is called when the durable backend fails or a record is corrupt.
	StorageError()

	// Refresh is called when a refresh hook is triggered.
	Refresh()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

We don't want to force every user of the cache to implement metrics.
If someone does not care about metrics, the cache still works without
if metrics != nil conditions everywhere.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()          {}
func (NoopMetrics) Miss()         {}
func (NoopMetrics) Fallback()     {}
func (NoopMetrics) Write()        {}
func (NoopMetrics) StorageError() {}
func (NoopMetrics) Refresh()      {}

// Counters is a lock-free Metrics implementation.
type Counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	fallbacks     atomic.Int64
	writes        atomic.Int64
	storageErrors atomic.Int64
	refreshes     atomic.Int64
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Fallbacks     int64
	Writes        int64
	StorageErrors int64
	Refreshes     int64
	HitRatio      float64 // hits / (hits + misses)
}

func (c *Counters) Hit()          { c.hits.Add(1) }
func (c *Counters) Miss()         { c.misses.Add(1) }
func (c *Counters) Fallback()     { c.fallbacks.Add(1) }
func (c *Counters) Write()        { c.writes.Add(1) }
func (c *Counters) StorageError() { c.storageErrors.Add(1) }
func (c *Counters) Refresh()      { c.refreshes.Add(1) }

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Stats{
		Hits:          hits,
		Misses:        misses,
		Fallbacks:     c.fallbacks.Load(),
		Writes:        c.writes.Load(),
		StorageErrors: c.storageErrors.Load(),
		Refreshes:     c.refreshes.Load(),
		HitRatio:      ratio,
	}
}
