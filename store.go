package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/campusapp/schedule-cache/engine"
	"github.com/campusapp/schedule-cache/expiration"
	"github.com/campusapp/schedule-cache/storage"
	"github.com/campusapp/schedule-cache/types"
)

// DefaultHotEntries is the hot tier size used when NewStore is given a non-positive size.
const DefaultHotEntries = 256

/*
Store is the persistent key -> value cache with explicit freshness checks.
This struct connects:
- a bounded in-process hot tier of decoded records
- the durable backend (reads go straight to it)
- the engine (clock, freshness, write policy, metrics, logging)

It never decides to refetch anything. Callers read an entry, ask IsFresh and act.
Storage failures are logged and counted by the engine; reads turn them into "absent".
*/
type Store struct {
	// hot keeps recently used records so repeated reads skip decoding and I/O.
	hot *lru.Cache[string, types.Record]

	// backend is the durable copy. Writes reach it through engine.WritePolicy.
	backend storage.Backend

	engine *engine.CacheEngine

	// gen changes on every mutation. A backend read only fills the hot tier when no
	// mutation happened while it was in progress.
	mu  sync.Mutex
	gen uint64
}

// Entry is one cached payload with the time it was written.
type Entry[T any] struct {
	Key       string
	Payload   T
	WrittenAt time.Time
}

// NewStore creates a Store over backend. hotEntries bounds the hot tier.
func NewStore(backend storage.Backend, eng *engine.CacheEngine, hotEntries int) (*Store, error) {
	if hotEntries <= 0 {
		hotEntries = DefaultHotEntries
	}
	hot, err := lru.New[string, types.Record](hotEntries)
	if err != nil {
		return nil, fmt.Errorf("hot tier: %w", err)
	}
	return &Store{hot: hot, backend: backend, engine: eng}, nil
}

/*
Write stores payload under key, replacing whatever was there, and stamps writtenAt = now.
It also refreshes the namespace companion timestamp and the global one.

The returned error is always a KindStorageFailure *Error. Callers that can proceed
without the cache should log it and carry on.
*/
func Write[T any](ctx context.Context, s *Store, key string, payload T) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.engine.StorageFailure("encode", key, err)
		return NewError(KindStorageFailure, "write", key, err)
	}
	return s.WriteRaw(ctx, key, raw)
}

// WriteRaw stores an already encoded JSON payload.
func (s *Store) WriteRaw(ctx context.Context, key string, payload json.RawMessage) error {
	now := s.engine.Now()
	if err := s.put(ctx, types.Record{Key: key, Payload: payload, WrittenAt: now}); err != nil {
		return NewError(KindStorageFailure, "write", key, err)
	}

	if isCompanion(key) {
		return nil
	}
	// Companion stamps are best effort; the entry itself is already stored.
	_ = s.put(ctx, types.Record{Key: UpdatedAtKey(NamespaceOf(key)), WrittenAt: now})
	_ = s.put(ctx, types.Record{Key: UpdatedAtKey(globalKey), WrittenAt: now})
	return nil
}

func (s *Store) put(ctx context.Context, rec types.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		s.engine.StorageFailure("encode", rec.Key, err)
		return err
	}
	if err := s.engine.OnWrite(ctx, rec.Key, data); err != nil {
		return err
	}
	s.mutate(func() { s.hot.Add(rec.Key, rec) })
	return nil
}

// mutate runs fn against the hot tier and marks in-flight backend reads as stale.
func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.gen++
}

/*
Read returns the entry stored under key.

ok is false when the key is absent, when the backend failed, or when the record could
not be decoded into T. A corrupt record is logged and removed, so the next Read is a
clean miss instead of the same failure again.
*/
func Read[T any](ctx context.Context, s *Store, key string) (Entry[T], bool) {
	var zero Entry[T]

	rec, ok := s.record(ctx, key)
	if !ok {
		return zero, false
	}

	var payload T
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		s.discard(ctx, key, err)
		return zero, false
	}
	return Entry[T]{Key: rec.Key, Payload: payload, WrittenAt: rec.WrittenAt}, true
}

/*
record loads the envelope for key.

Lookup order:
 1. hot tier
 2. a mutation the write policy has queued but not applied
 3. the backend
*/
func (s *Store) record(ctx context.Context, key string) (types.Record, bool) {
	if rec, ok := s.hot.Get(key); ok {
		return rec, true
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	data, removed, pending := s.engine.Pending(key)
	if pending && removed {
		return types.Record{}, false
	}
	if !pending {
		var (
			ok  bool
			err error
		)
		data, ok, err = s.backend.Get(ctx, key)
		if err != nil {
			s.engine.StorageFailure("read", key, err)
			return types.Record{}, false
		}
		if !ok {
			return types.Record{}, false
		}
	}

	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.discard(ctx, key, err)
		return types.Record{}, false
	}
	if rec.Key != key || rec.WrittenAt.IsZero() {
		s.discard(ctx, key, errors.New("record envelope does not match key"))
		return types.Record{}, false
	}

	s.mu.Lock()
	if s.gen == gen {
		s.hot.Add(key, rec)
	}
	s.mu.Unlock()
	return rec, true
}

func (s *Store) discard(ctx context.Context, key string, cause error) {
	s.engine.StorageFailure("decode", key, cause)
	_ = s.engine.OnRemove(ctx, key)
	s.mutate(func() { s.hot.Remove(key) })
}

// IsFresh reports whether something written at writtenAt is still inside ttl. No I/O.
func (s *Store) IsFresh(writtenAt time.Time, ttl time.Duration) bool {
	return s.engine.IsFresh(writtenAt, ttl)
}

// Fresh reports whether e is still inside ttl at now.
func Fresh[T any](e Entry[T], ttl time.Duration, now time.Time) bool {
	return expiration.AfterWrite{}.IsFresh(e.WrittenAt, ttl, now)
}

// Now is the store's clock.
func (s *Store) Now() time.Time {
	return s.engine.Now()
}

// LastWrite returns the companion timestamp of a namespace, i.e. when anything in it was last written.
func (s *Store) LastWrite(ctx context.Context, namespace string) (time.Time, bool) {
	rec, ok := s.record(ctx, UpdatedAtKey(namespace))
	if !ok {
		return time.Time{}, false
	}
	return rec.WrittenAt, true
}

// LastGlobalWrite returns when any key was last written.
func (s *Store) LastGlobalWrite(ctx context.Context) (time.Time, bool) {
	return s.LastWrite(ctx, globalKey)
}

// Invalidate removes one key. Removing a missing key is not an error.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	err := s.engine.OnRemove(ctx, key)
	s.mutate(func() { s.hot.Remove(key) })
	if err != nil {
		return NewError(KindStorageFailure, "invalidate", key, err)
	}
	return nil
}

// InvalidateAll removes every key starting with prefix, companions included.
// An empty prefix empties the store.
func (s *Store) InvalidateAll(ctx context.Context, prefix string) error {
	err := s.engine.OnRemovePrefix(ctx, prefix)
	s.mutate(func() {
		for _, k := range s.hot.Keys() {
			if strings.HasPrefix(k, prefix) {
				s.hot.Remove(k)
			}
		}
	})
	if err != nil {
		return NewError(KindStorageFailure, "invalidate-all", prefix, err)
	}
	return nil
}

// Stats returns the engine counters when the engine records into *types.Counters.
func (s *Store) Stats() types.Stats {
	if c, ok := s.engine.Metrics.(*types.Counters); ok {
		return c.Snapshot()
	}
	return types.Stats{}
}

// Metrics exposes the engine's metrics sink so callers can report hits and fallbacks.
func (s *Store) Metrics() types.Metrics {
	return s.engine.Metrics
}

// Close flushes pending backend writes. The backend itself stays open.
func (s *Store) Close() error {
	return s.engine.Close()
}
