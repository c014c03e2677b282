package writepolicy

import "context"

/*
This file defines what a "write policy" is: how a cache mutation reaches the durable backend.

- Write-through: the caller waits for the backend
- Write-back: the backend is updated by a background worker

Removals go through the same policy so that a queued write can never resurrect a key that
was invalidated after it.
*/

// WritePolicy is the contract that all write policies must follow.
type WritePolicy interface {

	// OnWrite stores value under key in the backend.
	OnWrite(ctx context.Context, key string, value []byte) error

	// OnRemove deletes key from the backend.
	OnRemove(ctx context.Context, key string) error

	// OnRemovePrefix deletes every key starting with prefix from the backend.
	OnRemovePrefix(ctx context.Context, prefix string) error

	// Close is called when the cache is shutting down. Pending work is flushed first.
	Close() error
}

// Overlay is implemented by policies that acknowledge mutations before the backend
// has them. Readers consult it before trusting a backend read.
type Overlay interface {
	Pending(key string) (value []byte, removed, ok bool)
}

var _ Overlay = (*WriteBackPolicy)(nil)
