package writepolicy

import (
	"context"

	"github.com/campusapp/schedule-cache/storage"
)

/*
WriteThroughPolicy forwards every cache mutation to the backend immediately.

So the flow is: cache write → backend write (synchronous). The cache write is not
complete until the backend has it, and a backend failure is returned to the caller.
*/
type WriteThroughPolicy struct {
	backend storage.Backend
}

// NewWriteThroughPolicy creates a new write-through policy.
func NewWriteThroughPolicy(backend storage.Backend) *WriteThroughPolicy {
	return &WriteThroughPolicy{backend: backend}
}

func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, value []byte) error {
	return w.backend.Set(ctx, key, value)
}

func (w *WriteThroughPolicy) OnRemove(ctx context.Context, key string) error {
	return w.backend.Remove(ctx, key)
}

func (w *WriteThroughPolicy) OnRemovePrefix(ctx context.Context, prefix string) error {
	return w.backend.RemovePrefix(ctx, prefix)
}

// Close has nothing to flush.
func (w *WriteThroughPolicy) Close() error { return nil }
