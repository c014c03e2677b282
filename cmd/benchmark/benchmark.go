package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/engine"
	"github.com/campusapp/schedule-cache/expiration"
	"github.com/campusapp/schedule-cache/schedule"
	"github.com/campusapp/schedule-cache/storage"
	"github.com/campusapp/schedule-cache/types"
	"github.com/campusapp/schedule-cache/writepolicy"
)

// ================= DATA =================

func semester(start schedule.DateKey, days int) map[schedule.DateKey][]schedule.Item {
	out := make(map[schedule.DateKey][]schedule.Item, days)
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		t, _ := d.Time(time.UTC)
		items := make([]schedule.Item, 4)
		for j := range items {
			items[j] = schedule.Item{
				Subject:    fmt.Sprintf("subject-%d", j),
				Kind:       schedule.KindLecture,
				Start:      t.Add(time.Duration(8+2*j) * time.Hour),
				End:        t.Add(time.Duration(9+2*j) * time.Hour),
				Room:       "301",
				Instructor: "Ivanov",
				Groups:     []string{"ИВТ-21"},
			}
		}
		out[d] = items
	}
	return out
}

// ================= BENCHMARK =================

func main() {
	driver := flag.String("driver", "memory", "memory or sqlite")
	policy := flag.String("policy", "write-through", "write-through or write-back")
	flag.Parse()

	ctx := context.Background()

	// ---------------- Config ----------------
	const (
		hotEntries = 64
		days       = 120
		goroutines = 64
		opsPerG    = 2000
	)

	fmt.Println("\n================ STORE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Driver       :", *driver)
	fmt.Println("Write policy :", *policy)
	fmt.Println("Hot entries  :", hotEntries)
	fmt.Println("Days stored  :", days)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("---------------------------------")

	// ---------------- Backend ----------------
	var backend storage.Backend = storage.NewMemory()
	if *driver == "sqlite" {
		dir, err := os.MkdirTemp("", "schedule-bench")
		if err != nil {
			log.Fatal(err)
		}
		defer os.RemoveAll(dir)
		db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "bench.db"))
		if err != nil {
			log.Fatal(err)
		}
		backend = db
	}
	defer backend.Close()

	var wp writepolicy.WritePolicy = writepolicy.NewWriteThroughPolicy(backend)
	if *policy == "write-back" {
		wp = writepolicy.NewWriteBackPolicy(backend, 4096, nil)
	}

	// ---------------- Store ----------------
	metrics := &types.Counters{}
	eng := engine.NewCacheEngine(
		expiration.AfterWrite{},
		wp,
		metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
	)
	store, err := cache.NewStore(backend, eng, hotEntries)
	if err != nil {
		log.Fatal(err)
	}

	// ---------------- Preload ----------------
	fmt.Println("Preloading store...")
	data := semester("2024-09-02", days)
	start := time.Now()
	for d, items := range data {
		if err := cache.Write(ctx, store, cache.DayKey(d.String()), items); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("Preload complete in %v.\n", time.Since(start))

	// ---------------- Load Test ----------------
	// More days than hot entries, so reads keep falling through to the backend.
	fmt.Println("Running concurrency benchmark...")
	start = time.Now()

	wg := sync.WaitGroup{}
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			first := schedule.DateKey("2024-09-02")
			for j := 0; j < opsPerG; j++ {
				d := first.AddDays((id*7 + j) % days)
				e, ok := cache.Read[[]schedule.Item](ctx, store, cache.DayKey(d.String()))
				if ok && store.IsFresh(e.WrittenAt, time.Hour) {
					metrics.Hit()
				} else {
					metrics.Miss()
				}
			}
		}(i)
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG
	if err := store.Close(); err != nil {
		log.Fatal(err)
	}

	st := store.Stats()
	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Hit Ratio        : %.2f\n", st.HitRatio)
	fmt.Printf("Storage Errors   : %d\n", st.StorageErrors)
	fmt.Println("=========================================")
}
