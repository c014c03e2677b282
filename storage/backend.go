// Package storage holds the durable byte stores that sit underneath the cache.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by a backend after Close.
var ErrClosed = errors.New("storage: backend closed")

/*
Backend is persistent key -> bytes storage.

The cache does not care whether the bytes end up in a map, a file or a database.
It only needs whole-value replace semantics: a Get never observes half of a Set.
*/
type Backend interface {

	// Get returns the stored bytes. ok is false when the key does not exist.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// RemovePrefix deletes every key starting with prefix. An empty prefix clears the backend.
	RemovePrefix(ctx context.Context, prefix string) error

	// Close releases the backend.
	Close() error
}
