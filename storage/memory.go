package storage

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

/*
Memory is a Copy-On-Write implementation of Backend.

- Readers always see an immutable snapshot
- Writers create a NEW copy of the map
- The new map replaces the old one atomically

Reads are lock-free. Writes are serialized by mu so two writers never drop each
other's copies. Nothing survives a process restart, so this backend is meant for tests,
demos and "no persistence" configurations.
*/
type Memory struct {
	// data holds map[string][]byte snapshots.
	data atomic.Value

	mu     sync.Mutex
	closed atomic.Bool
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	m := &Memory{}
	m.data.Store(map[string][]byte{})
	return m
}

func (m *Memory) snapshot() map[string][]byte {
	return m.data.Load().(map[string][]byte)
}

// Get retrieves a copy of the stored bytes.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := m.snapshot()[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set copies the current map, adds the value and swaps the map in.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snapshot()
	n := make(map[string][]byte, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = append([]byte(nil), value...)
	m.data.Store(n)
	return nil
}

// Remove deletes one key. Just like Set, this uses copy-on-write.
func (m *Memory) Remove(_ context.Context, key string) error {
	return m.rewrite(func(k string) bool { return k == key })
}

// RemovePrefix deletes every key that starts with prefix.
func (m *Memory) RemovePrefix(_ context.Context, prefix string) error {
	return m.rewrite(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

func (m *Memory) rewrite(drop func(string) bool) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snapshot()
	n := make(map[string][]byte, len(old))
	for k, v := range old {
		if !drop(k) {
			n[k] = v
		}
	}
	m.data.Store(n)
	return nil
}

// Len returns how many keys are stored.
func (m *Memory) Len() int {
	return len(m.snapshot())
}

// Close marks the backend closed. Data is dropped with it.
func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}
