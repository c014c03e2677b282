package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/config"
	"github.com/campusapp/schedule-cache/credential"
	"github.com/campusapp/schedule-cache/engine"
	"github.com/campusapp/schedule-cache/expiration"
	"github.com/campusapp/schedule-cache/internal/mockupstream"
	"github.com/campusapp/schedule-cache/netprobe"
	"github.com/campusapp/schedule-cache/refresh"
	"github.com/campusapp/schedule-cache/registration"
	"github.com/campusapp/schedule-cache/remote"
	"github.com/campusapp/schedule-cache/schedsync"
	"github.com/campusapp/schedule-cache/schedule"
	"github.com/campusapp/schedule-cache/storage"
	"github.com/campusapp/schedule-cache/types"
	"github.com/campusapp/schedule-cache/writepolicy"
)

// ================= HELPERS =================

func printDay(label string, res schedsync.DayResult, err error) {
	if err != nil {
		fmt.Printf("%-8s → %s ERROR kind=%v: %v\n", label, res.Date, cache.KindOf(err), err)
		return
	}
	fmt.Printf("%-8s → %s origin=%-8s items=%d degraded=%v\n", label, res.Date, res.Origin, len(res.Items), res.Degraded())
	for _, it := range res.Items {
		active := ""
		if it.Active {
			active = " (now)"
		}
		fmt.Printf("           %s-%s %-9s %s, room %s%s\n",
			it.Start.Local().Format("15:04"), it.End.Local().Format("15:04"), it.Kind, it.Subject, it.Room, active)
	}
}

func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	if cfg.Cache.Driver == "sqlite" {
		db, err := storage.OpenSQLite(ctx, cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return storage.NewMemory(), nil
}

func newWritePolicy(cfg config.Config, backend storage.Backend, logger *slog.Logger) writepolicy.WritePolicy {
	if cfg.Cache.WritePolicy == "write-back" {
		return writepolicy.NewWriteBackPolicy(backend, cfg.Cache.WriteBackBuffer, func(key string, err error) {
			logger.Warn("write-back failed", "key", key, "error", err)
		})
	}
	return writepolicy.NewWriteThroughPolicy(backend)
}

// ================= MAIN =================

func main() {
	configPath := flag.String("config", "", "YAML or JSON config file (optional)")
	flag.Parse()

	ctx := context.Background()

	// ---------------- Config ----------------
	cfg := config.Default()
	cfg.Cache.Driver = "memory"
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	logger := cfg.NewLogger(os.Stderr)

	// ---------------- Upstream ----------------
	upstream := mockupstream.New(logger)
	srv := httptest.NewServer(upstream.Router())
	defer srv.Close()
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = srv.URL
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	firstDay, _ := cfg.FirstWeekday()
	loc, _ := cfg.Location()

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("UPSTREAM        :", cfg.Upstream.BaseURL)
	fmt.Println("STORAGE         :", cfg.Cache.Driver, cfg.Cache.Path)
	fmt.Println("WRITE POLICY    :", cfg.Cache.WritePolicy)
	fmt.Println("HOT TIER        :", cfg.Cache.HotEntries, "entries (LRU)")
	fmt.Println("TTL day/week/course:", cfg.TTL.Day, cfg.TTL.Week, cfg.TTL.Course)
	fmt.Println("WEEK STARTS ON  :", firstDay)

	// ---------------- Store ----------------
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	metrics := &types.Counters{}
	eng := engine.NewCacheEngine(
		expiration.AfterWrite{},
		newWritePolicy(cfg, backend, logger),
		metrics,
		logger,
		types.SystemClock,
	)
	store, err := cache.NewStore(backend, eng, cfg.Cache.HotEntries)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// ---------------- Collaborators ----------------
	gate := credential.NewMemoryGate(nil)
	gate.Set(credential.Credential{Token: "demo-token", Identity: "student-42", ExpiresAt: time.Now().Add(time.Hour)})
	upstream.AcceptTokens("demo-token")

	probe := netprobe.NewStatic(true)

	rc := remote.New(remote.Options{
		BaseURL: cfg.Upstream.BaseURL,
		Gate:    gate,
		Loc:     loc,
		Logger:  logger,
	})

	var hook refresh.Hook
	var background *refresh.Background
	if cfg.Refresh.Background {
		background = refresh.NewBackground(metrics, logger, cfg.Refresh.Timeout.Duration)
		hook = background
	}

	client, err := schedsync.New(schedsync.Options{
		Store:     store,
		Gate:      gate,
		Probe:     probe,
		Remote:    rc,
		DayTTL:    cfg.TTL.Day.Duration,
		WeekTTL:   cfg.TTL.Week.Duration,
		CourseTTL: cfg.TTL.Course.Duration,
		FirstDay:  firstDay,
		Loc:       loc,
		Hook:      hook,
		Logger:    logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	installID := uuid.NewString()
	registrar := registration.NewDeviceRegistrar(registration.RegistrarOptions{
		API:  rc,
		Gate: gate,
		DeviceToken: func(context.Context) (string, error) {
			return "install-" + installID, nil
		},
		Platform:   cfg.Device.Platform,
		DeviceName: cfg.Device.Name,
		Logger:     logger,
	})

	today := schedule.DateOf(time.Now().In(loc))
	week := schedule.WeekOf(time.Now().In(loc), firstDay)

	// ====================================================
	fmt.Println("\n==================== 1) CACHE MISS ====================")
	res, err := client.GetDay(ctx, week[0], false)
	printDay("GETDAY", res, err)

	// ====================================================
	fmt.Println("\n==================== 2) CACHE HIT ====================")
	res, err = client.GetDay(ctx, week[0], false)
	printDay("GETDAY", res, err)
	fmt.Println("UPSTREAM schedule calls so far:", upstream.ScheduleCalls())

	// ====================================================
	fmt.Println("\n==================== 3) WEEK, ONE DAY FAILING ====================")
	upstream.FailDate(week[2], 1)
	wk, err := client.GetWeek(ctx, time.Now(), false)
	if err != nil {
		fmt.Println("GETWEEK  → ERROR", err)
	}
	for _, d := range week {
		marker := ""
		if d == today {
			marker = " <- today"
		}
		fmt.Printf("GETWEEK  → %s origin=%-8v items=%d%s\n", d, wk.Origin(d), len(wk.Days[d]), marker)
	}
	fmt.Println("FAILED   →", wk.Failed)
	if background != nil {
		background.Wait()
	}

	// ====================================================
	fmt.Println("\n==================== 4) OFFLINE FALLBACK ====================")
	probe.Set(false)
	res, err = client.GetDay(ctx, week[0], true)
	printDay("OFFLINE", res, err)
	res, err = client.GetDay(ctx, week[0].AddDays(-30), false)
	printDay("OFFLINE", res, err)
	probe.Set(true)

	// ====================================================
	fmt.Println("\n==================== 5) COURSE INFO ====================")
	course, err := client.GetCourseInfoForGroup(ctx, "ИВТ-21", false)
	if err != nil {
		fmt.Println("COURSE   → ERROR", err)
	} else {
		fmt.Printf("COURSE   → %s: year %d, %s (%s)\n", course.Group, course.Info.Course, course.Info.Speciality, course.Origin)
	}

	// ====================================================
	fmt.Println("\n==================== 6) CONCURRENT REGISTRATION ====================")
	upstream.SetLatency(100 * time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(screen int) {
			defer wg.Done()
			out, err := registrar.CredentialAvailable(ctx)
			if err != nil {
				fmt.Printf("SCREEN %d → ERROR %v\n", screen, err)
				return
			}
			fmt.Printf("SCREEN %d → status=%d device=%s\n", screen, out.Status, out.Result.DeviceID)
		}(i)
	}
	wg.Wait()
	fmt.Println("UPSTREAM register calls:", upstream.RegisterCalls())
	if n, err := registrar.SendTestNotification(ctx); err == nil {
		fmt.Println("PUSH     → delivered:", n.Delivered, n.MessageID)
	}

	// ====================================================
	fmt.Println("\n==================== 7) SESSION EXPIRED ====================")
	upstream.AcceptTokens("rotated-token")
	res, err = client.GetDay(ctx, week[1], true)
	printDay("GETDAY", res, err)
	if errors.Is(err, cache.ErrSessionExpired) {
		fmt.Println("UI       → \"your session expired, please log in again\"")
	}

	// ====================================================
	fmt.Println("\n==================== 8) LOGOUT ====================")
	client.ClearCache(ctx)
	registrar.Logout("student-42")
	gate.Clear()
	res, err = client.GetDay(ctx, week[0], false)
	printDay("GETDAY", res, err)

	// ====================================================
	st := store.Stats()
	fmt.Println("\n==================== METRICS ====================")
	fmt.Printf("HITS           : %d\n", st.Hits)
	fmt.Printf("MISSES         : %d\n", st.Misses)
	fmt.Printf("FALLBACKS      : %d\n", st.Fallbacks)
	fmt.Printf("WRITES         : %d\n", st.Writes)
	fmt.Printf("STORAGE ERRORS : %d\n", st.StorageErrors)
	fmt.Printf("REFRESHES      : %d\n", st.Refreshes)
	fmt.Printf("HIT RATIO      : %.2f\n", st.HitRatio)
}
