package writepolicy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/campusapp/schedule-cache/storage"
	"github.com/campusapp/schedule-cache/writepolicy"
)

func TestWriteThrough(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	p := writepolicy.NewWriteThroughPolicy(backend)

	if err := p.OnWrite(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v, ok, _ := backend.Get(ctx, "a"); !ok || string(v) != "1" {
		t.Fatalf("expected backend to have the value immediately, got %q ok=%v", v, ok)
	}

	if err := p.OnRemove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := backend.Get(ctx, "a"); ok {
		t.Fatal("expected key to be removed")
	}
}

func TestWriteBackKeepsOrder(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	p := writepolicy.NewWriteBackPolicy(backend, 2, nil)

	// More mutations than the buffer holds; a later remove must win over earlier sets.
	for i := 0; i < 10; i++ {
		p.OnWrite(ctx, "schedule.day.a", []byte{byte(i)})
	}
	p.OnWrite(ctx, "schedule.day.b", []byte("b"))
	p.OnRemovePrefix(ctx, "schedule.day.")
	p.OnWrite(ctx, "schedule.day.c", []byte("c"))

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, ok, _ := backend.Get(ctx, "schedule.day.a"); ok {
		t.Fatal("expected a to be removed by the later prefix removal")
	}
	if v, ok, _ := backend.Get(ctx, "schedule.day.c"); !ok || string(v) != "c" {
		t.Fatalf("expected c to be flushed on close, got %q ok=%v", v, ok)
	}
}

func TestWriteBackAfterClose(t *testing.T) {
	p := writepolicy.NewWriteBackPolicy(storage.NewMemory(), 4, nil)
	p.Close()
	p.Close()

	err := p.OnWrite(context.Background(), "k", nil)
	if !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWriteBackReportsErrors(t *testing.T) {
	backend := storage.NewMemory()
	backend.Close()

	var failed []string
	p := writepolicy.NewWriteBackPolicy(backend, 4, func(key string, err error) {
		failed = append(failed, key)
	})
	p.OnWrite(context.Background(), "k", []byte("v"))
	p.Close()

	if len(failed) != 1 || failed[0] != "k" {
		t.Fatalf("expected one reported failure for k, got %v", failed)
	}
}

// gatedBackend holds every Set until release is closed.
type gatedBackend struct {
	*storage.Memory
	release chan struct{}
}

func (g *gatedBackend) Set(ctx context.Context, key string, value []byte) error {
	<-g.release
	return g.Memory.Set(ctx, key, value)
}

func TestWriteBackPendingUntilApplied(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{Memory: storage.NewMemory(), release: make(chan struct{})}
	p := writepolicy.NewWriteBackPolicy(backend, 8, nil)

	p.OnWrite(ctx, "schedule.day.a", []byte("a1"))
	p.OnWrite(ctx, "schedule.day.a", []byte("a2"))
	p.OnWrite(ctx, "schedule.day.b", []byte("b"))
	p.OnWrite(ctx, "teachers.list", []byte("t"))

	if v, removed, ok := p.Pending("schedule.day.a"); !ok || removed || string(v) != "a2" {
		t.Fatalf("expected latest pending value a2, got %q removed=%v ok=%v", v, removed, ok)
	}

	p.OnRemovePrefix(ctx, "schedule.")
	for _, k := range []string{"schedule.day.a", "schedule.day.b", "schedule.week.x"} {
		if _, removed, ok := p.Pending(k); !ok || !removed {
			t.Fatalf("expected %s to be pending removal, removed=%v ok=%v", k, removed, ok)
		}
	}

	p.OnWrite(ctx, "schedule.day.c", []byte("c"))
	if v, removed, ok := p.Pending("schedule.day.c"); !ok || removed || string(v) != "c" {
		t.Fatalf("expected a write after the prefix removal to win, got %q removed=%v ok=%v", v, removed, ok)
	}

	close(backend.release)
	p.Close()

	for _, k := range []string{"schedule.day.a", "schedule.day.c", "teachers.list"} {
		if _, _, ok := p.Pending(k); ok {
			t.Fatalf("expected nothing pending for %s after close", k)
		}
	}
	if _, ok, _ := backend.Get(ctx, "schedule.day.a"); ok {
		t.Fatal("expected schedule.day.a to be removed from the backend")
	}
}

func TestWriteThroughHasNoOverlay(t *testing.T) {
	var p writepolicy.WritePolicy = writepolicy.NewWriteThroughPolicy(storage.NewMemory())
	if _, ok := p.(writepolicy.Overlay); ok {
		t.Fatal("write-through applies synchronously and should not report pending mutations")
	}
}
