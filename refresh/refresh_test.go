package refresh_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/campusapp/schedule-cache/refresh"
	"github.com/campusapp/schedule-cache/types"
)

type recordingLoader struct {
	mu      sync.Mutex
	calls   map[string]int
	running int
	maxRun  int
	block   chan struct{}
	err     error
}

func (l *recordingLoader) Reload(ctx context.Context, key string) error {
	l.mu.Lock()
	l.calls[key]++
	l.running++
	if l.running > l.maxRun {
		l.maxRun = l.running
	}
	l.mu.Unlock()

	if l.block != nil {
		<-l.block
	}

	l.mu.Lock()
	l.running--
	l.mu.Unlock()
	return l.err
}

func newBackground(m types.Metrics) *refresh.Background {
	return refresh.NewBackground(m, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
}

func TestBackground_ReloadsEveryKeyOneAtATime(t *testing.T) {
	loader := &recordingLoader{calls: map[string]int{}}
	counters := &types.Counters{}
	b := newBackground(counters)

	b.OnDegraded(context.Background(), loader, []string{"schedule.day.2024-09-02", "schedule.day.2024-09-03", "schedule.course.A-1"})
	b.Wait()

	if len(loader.calls) != 3 {
		t.Fatalf("reloaded %d keys, want 3", len(loader.calls))
	}
	if loader.maxRun != 1 {
		t.Fatalf("max concurrent reloads = %d, want 1", loader.maxRun)
	}
	if got := counters.Snapshot().Refreshes; got != 3 {
		t.Fatalf("refreshes = %d, want 3", got)
	}
}

func TestBackground_DeduplicatesKeyInFlight(t *testing.T) {
	loader := &recordingLoader{calls: map[string]int{}, block: make(chan struct{})}
	b := newBackground(nil)

	b.OnDegraded(context.Background(), loader, []string{"schedule.day.2024-09-02"})
	deadline := time.Now().Add(time.Second)
	for {
		loader.mu.Lock()
		started := loader.running == 1
		loader.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reload never started")
		}
		time.Sleep(time.Millisecond)
	}

	b.OnDegraded(context.Background(), loader, []string{"schedule.day.2024-09-02"})
	time.Sleep(10 * time.Millisecond)
	close(loader.block)
	b.Wait()

	if n := loader.calls["schedule.day.2024-09-02"]; n != 1 {
		t.Fatalf("reloads = %d, want 1", n)
	}
}

func TestBackground_SurvivesCallerCancelAndErrors(t *testing.T) {
	loader := &recordingLoader{calls: map[string]int{}, err: errors.New("offline")}
	b := newBackground(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.OnDegraded(ctx, loader, []string{"k"})
	b.Wait()

	if loader.calls["k"] != 1 {
		t.Fatalf("reloads = %d, want 1", loader.calls["k"])
	}
}
