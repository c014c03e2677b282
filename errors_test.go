package cache_test

import (
	"errors"
	"testing"

	cache "github.com/campusapp/schedule-cache"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	err := cache.NewError(cache.KindFetchFailed, "getDay", "schedule.day.2024-09-02", cause)

	if !errors.Is(err, cache.ErrFetchFailed) {
		t.Fatal("expected ErrFetchFailed")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to stay reachable")
	}
	if errors.Is(err, cache.ErrSessionExpired) {
		t.Fatal("did not expect ErrSessionExpired")
	}
	if got := err.Error(); got != "getDay schedule.day.2024-09-02: fetch failed: connection reset" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNoNetworkNoCacheIsNoData(t *testing.T) {
	err := cache.NewError(cache.KindNoNetworkNoCache, "getDay", "", nil)

	if !errors.Is(err, cache.ErrNoNetworkNoCache) {
		t.Fatal("expected ErrNoNetworkNoCache")
	}
	if !errors.Is(err, cache.ErrNoDataAvailable) {
		t.Fatal("expected offline-without-cache to also count as no data")
	}
	if cache.KindOf(cache.ErrSessionExpired) != cache.KindSessionExpired {
		t.Fatal("expected bare sentinel to map to its kind")
	}
	if cache.KindOf(cache.ErrInvalidInput) != cache.KindInvalidInput {
		t.Fatal("expected the last kind to be reachable from its sentinel")
	}
	if cache.KindOf(errors.New("other")) != 0 {
		t.Fatal("expected foreign errors to have no kind")
	}
}
