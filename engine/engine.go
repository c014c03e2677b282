package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/campusapp/schedule-cache/expiration"
	"github.com/campusapp/schedule-cache/types"
	"github.com/campusapp/schedule-cache/writepolicy"
)

/*
CacheEngine is the policy layer of the store.
It is responsible for the "behavior" of the cache, NOT for holding records.

It decides:
- What "now" is
- When a record is fresh
- How writes and removals are propagated to the durable backend
- How metrics are recorded
- How storage failures are reported

It does NOT:
- Decode records
- Keep the hot tier
- Decide when to go to the network
*/
type CacheEngine struct {

	// Expiration decides whether a record is still fresh for a TTL.
	Expiration expiration.Strategy

	// WritePolicy decides how mutations reach the durable backend.
	WritePolicy writepolicy.WritePolicy

	// Metrics keeps track of hits, misses, fallbacks, writes and storage errors.
	Metrics types.Metrics

	// Logger receives storage failures. They are never returned to the UI.
	Logger *slog.Logger

	// Clock is the source of "now" for writtenAt stamps and freshness checks.
	Clock types.Clock
}

// NewCacheEngine creates a CacheEngine. Nil arguments get harmless defaults,
// except writePolicy, which is required.
func NewCacheEngine(
	exp expiration.Strategy,
	writePolicy writepolicy.WritePolicy,
	metrics types.Metrics,
	logger *slog.Logger,
	clock types.Clock,
) *CacheEngine {
	if exp == nil {
		exp = expiration.AfterWrite{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.SystemClock
	}

	return &CacheEngine{
		Expiration:  exp,
		WritePolicy: writePolicy,
		Metrics:     metrics,
		Logger:      logger,
		Clock:       clock,
	}
}

// Now returns the engine's current time.
func (e *CacheEngine) Now() time.Time {
	return e.Clock()
}

// IsFresh reports whether a record written at writtenAt is fresh for ttl right now.
func (e *CacheEngine) IsFresh(writtenAt time.Time, ttl time.Duration) bool {
	return e.Expiration.IsFresh(writtenAt, ttl, e.Clock())
}

/*
OnWrite pushes an encoded record to the durable backend through the write policy.
A failure is counted and logged here and then returned so the store can wrap it.
*/
func (e *CacheEngine) OnWrite(ctx context.Context, key string, value []byte) error {
	if err := e.WritePolicy.OnWrite(ctx, key, value); err != nil {
		e.StorageFailure("write", key, err)
		return err
	}
	e.Metrics.Write()
	return nil
}

// OnRemove deletes a key from the durable backend.
func (e *CacheEngine) OnRemove(ctx context.Context, key string) error {
	if err := e.WritePolicy.OnRemove(ctx, key); err != nil {
		e.StorageFailure("remove", key, err)
		return err
	}
	return nil
}

// OnRemovePrefix deletes every key under prefix from the durable backend.
func (e *CacheEngine) OnRemovePrefix(ctx context.Context, prefix string) error {
	if err := e.WritePolicy.OnRemovePrefix(ctx, prefix); err != nil {
		e.StorageFailure("remove-prefix", prefix, err)
		return err
	}
	return nil
}

// Pending reports a mutation of key that the write policy accepted but the backend
// does not hold yet. Policies that apply synchronously never have one.
func (e *CacheEngine) Pending(key string) (value []byte, removed, ok bool) {
	o, isOverlay := e.WritePolicy.(writepolicy.Overlay)
	if !isOverlay {
		return nil, false, false
	}
	return o.Pending(key)
}

// StorageFailure records a backend or decoding failure.
func (e *CacheEngine) StorageFailure(op, key string, err error) {
	e.Metrics.StorageError()
	e.Logger.Warn("cache storage failure", "op", op, "key", key, "error", err)
}

// Close flushes and stops the write policy.
func (e *CacheEngine) Close() error {
	return e.WritePolicy.Close()
}
