// This file defines the idea of a "refresh hook".
// The sync client calls it whenever it serves degraded data, so something can try
// to bring those keys back to fresh without making the caller wait.

package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/campusapp/schedule-cache/types"
)

/*
Hook is the interface for refresh behavior.
If a refresh hook is configured, it will be called every time a result is served from
stale cache because the network path failed.

This gives us a chance to:
- Retry the failed keys in the background
- Log which keys keep degrading

The sync client does NOT care what the hook does.
It just calls OnDegraded and returns the degraded result.
*/
type Hook interface {

	/*
		OnDegraded is called with the cache keys that were just served degraded.
		loader re-fetches one key. This method runs on the read path and MUST NOT block.
	*/
	OnDegraded(ctx context.Context, loader types.Loader, keys []string)
}

/*
Background is a Hook that re-fetches degraded keys on its own goroutines.

A key already being refreshed is not refreshed twice, and refreshes run one at a
time so a flaky upstream is not hit with a burst of retries.
*/
type Background struct {
	metrics types.Metrics
	logger  *slog.Logger
	timeout time.Duration

	calls singleflight.Group
	slot  chan struct{}
	wg    sync.WaitGroup
}

// NewBackground creates a Background hook. Each reload gets at most timeout.
func NewBackground(metrics types.Metrics, logger *slog.Logger, timeout time.Duration) *Background {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Background{
		metrics: metrics,
		logger:  logger,
		timeout: timeout,
		slot:    make(chan struct{}, 1),
	}
}

func (b *Background) OnDegraded(ctx context.Context, loader types.Loader, keys []string) {
	// The caller's context usually ends with the request; the refresh outlives it.
	ctx = context.WithoutCancel(ctx)

	for _, key := range keys {
		b.wg.Add(1)
		go func(key string) {
			defer b.wg.Done()
			_, _, _ = b.calls.Do(key, func() (any, error) {
				b.slot <- struct{}{}
				defer func() { <-b.slot }()
				return nil, b.reload(ctx, loader, key)
			})
		}(key)
	}
}

func (b *Background) reload(ctx context.Context, loader types.Loader, key string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	b.metrics.Refresh()
	if err := loader.Reload(ctx, key); err != nil {
		b.logger.Info("background refresh failed", "key", key, "error", err)
		return err
	}
	b.logger.Debug("background refresh done", "key", key)
	return nil
}

// Wait blocks until every refresh started so far has finished.
func (b *Background) Wait() {
	b.wg.Wait()
}
