package cache_test

import (
	"context"
	"fmt"
	"testing"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/storage"
)

func newBenchmarkStore(b *testing.B) *cache.Store {
	return newTestStore(b, storage.NewMemory(), newTestClock())
}

func benchmarkDay() []lesson {
	day := make([]lesson, 6)
	for i := range day {
		day[i] = lesson{Subject: fmt.Sprintf("subject-%d", i), Room: "101", Groups: []string{"A-1"}}
	}
	return day
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkStoreReadHot(b *testing.B) {
	ctx := context.Background()
	s := newBenchmarkStore(b)
	cache.Write(ctx, s, "key", benchmarkDay())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Read[[]lesson](ctx, s, "key")
	}
}

func BenchmarkStoreReadMiss(b *testing.B) {
	ctx := context.Background()
	s := newBenchmarkStore(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Read[[]lesson](ctx, s, fmt.Sprintf("miss-%d", i))
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkStoreParallelRead(b *testing.B) {
	ctx := context.Background()
	s := newBenchmarkStore(b)
	for i := 0; i < 7; i++ {
		cache.Write(ctx, s, fmt.Sprintf("key-%d", i), benchmarkDay())
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cache.Read[[]lesson](ctx, s, "key-3")
		}
	})
}

//
// ================= WRITE BENCH =================
//

func BenchmarkStoreWrite(b *testing.B) {
	ctx := context.Background()
	s := newBenchmarkStore(b)
	day := benchmarkDay()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Write(ctx, s, fmt.Sprintf("key-%d", i%64), day)
	}
}
