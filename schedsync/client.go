/*
Package schedsync produces schedule data for the UI, preferring fresh network data
and falling back to saved data when the network path fails.

Every read goes through the same steps:

 1. a fresh cache entry is returned as is (unless the caller forces a refresh)
 2. no credential: ErrAuthRequired
 3. no connectivity: any saved entry, tagged as fallback
 4. fetch, normalize, store, return
 5. the server rejected the credential: ErrSessionExpired; any other failure:
    any saved entry, tagged as fallback, or ErrFetchFailed

Errors are always *cache.Error values so the UI can switch on cache.KindOf.
*/
package schedsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/credential"
	"github.com/campusapp/schedule-cache/netprobe"
	"github.com/campusapp/schedule-cache/refresh"
	"github.com/campusapp/schedule-cache/remote"
	"github.com/campusapp/schedule-cache/schedule"
	"github.com/campusapp/schedule-cache/types"
)

// Default TTLs.
const (
	DefaultDayTTL    = time.Hour
	DefaultWeekTTL   = time.Hour
	DefaultCourseTTL = 24 * time.Hour
)

// Remote is the network source of schedule data.
// A server rejection of the credential must match cache.ErrCredentialRejected and an
// unknown group must match remote.ErrNotFound.
type Remote interface {
	FetchSchedule(ctx context.Context, date schedule.DateKey) ([]schedule.Item, error)
	FetchCourse(ctx context.Context, group string) (schedule.CourseInfo, error)
}

// Options configures a Client. Store, Gate, Probe and Remote are required.
type Options struct {
	Store  *cache.Store
	Gate   credential.Gate
	Probe  netprobe.Probe
	Remote Remote

	DayTTL    time.Duration
	WeekTTL   time.Duration
	CourseTTL time.Duration

	// FirstDay starts the week. The zero value is Sunday.
	FirstDay time.Weekday

	// Loc decides which calendar date a reference time falls on.
	Loc *time.Location

	// Hook, if set, is told about every key served degraded.
	Hook refresh.Hook

	Logger *slog.Logger
}

// Client is the schedule sync client.
type Client struct {
	store   *cache.Store
	gate    credential.Gate
	probe   netprobe.Probe
	remote  Remote
	metrics types.Metrics

	dayTTL, weekTTL, courseTTL time.Duration
	firstDay                   time.Weekday
	loc                        *time.Location

	hook   refresh.Hook
	logger *slog.Logger
}

var errStillDegraded = cache.NewError(cache.KindFetchFailed, "reload", "", errors.New("saved data still served"))

// New creates a Client.
func New(o Options) (*Client, error) {
	switch {
	case o.Store == nil:
		return nil, errors.New("schedsync: Store is required")
	case o.Gate == nil:
		return nil, errors.New("schedsync: Gate is required")
	case o.Probe == nil:
		return nil, errors.New("schedsync: Probe is required")
	case o.Remote == nil:
		return nil, errors.New("schedsync: Remote is required")
	}
	if o.DayTTL <= 0 {
		o.DayTTL = DefaultDayTTL
	}
	if o.WeekTTL <= 0 {
		o.WeekTTL = DefaultWeekTTL
	}
	if o.CourseTTL <= 0 {
		o.CourseTTL = DefaultCourseTTL
	}
	if o.Loc == nil {
		o.Loc = time.Local
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return &Client{
		store:     o.Store,
		gate:      o.Gate,
		probe:     o.Probe,
		remote:    o.Remote,
		metrics:   o.Store.Metrics(),
		dayTTL:    o.DayTTL,
		weekTTL:   o.WeekTTL,
		courseTTL: o.CourseTTL,
		firstDay:  o.FirstDay,
		loc:       o.Loc,
		hook:      o.Hook,
		logger:    o.Logger,
	}, nil
}

// GetDay returns the schedule of date.
func (c *Client) GetDay(ctx context.Context, date schedule.DateKey, forceRefresh bool) (DayResult, error) {
	return c.getDay(ctx, date, forceRefresh, true)
}

func (c *Client) getDay(ctx context.Context, date schedule.DateKey, force, notify bool) (DayResult, error) {
	const op = "getDay"
	if !date.Valid() {
		return DayResult{}, cache.NewError(cache.KindInvalidInput, op, string(date), fmt.Errorf("date %q is not YYYY-MM-DD", date))
	}
	key := cache.DayKey(date.String())

	cached, ok := cache.Read[[]schedule.Item](ctx, c.store, key)
	if ok && !force && c.store.IsFresh(cached.WrittenAt, c.dayTTL) {
		c.metrics.Hit()
		return c.dayResult(date, cached.Payload, OriginCache, cached.WrittenAt), nil
	}
	c.metrics.Miss()

	if !c.gate.HasValidCredential(ctx) {
		return DayResult{}, cache.NewError(cache.KindAuthRequired, op, key, nil)
	}

	if !c.probe.IsReachable(ctx) {
		if ok {
			c.servingSaved(ctx, op, key, nil, notify)
			return c.dayResult(date, cached.Payload, OriginFallback, cached.WrittenAt), nil
		}
		return DayResult{}, cache.NewError(cache.KindNoNetworkNoCache, op, key, nil)
	}

	items, err := c.fetchDay(ctx, date)
	if err == nil {
		return c.dayResult(date, items, OriginNetwork, c.store.Now()), nil
	}
	if errors.Is(err, cache.ErrCredentialRejected) {
		return DayResult{}, cache.NewError(cache.KindSessionExpired, op, key, err)
	}
	if ok {
		c.servingSaved(ctx, op, key, err, notify)
		return c.dayResult(date, cached.Payload, OriginFallback, cached.WrittenAt), nil
	}
	return DayResult{}, cache.NewError(cache.KindFetchFailed, op, key, err)
}

// fetchDay runs the network half of a day read: fetch, normalize, store.
func (c *Client) fetchDay(ctx context.Context, date schedule.DateKey) ([]schedule.Item, error) {
	items, err := c.remote.FetchSchedule(ctx, date)
	if err != nil {
		return nil, err
	}
	items = schedule.Canonical(items)
	// A failed write is already logged by the store; the fetched data is still good.
	_ = cache.Write(ctx, c.store, cache.DayKey(date.String()), items)
	return items, nil
}

func (c *Client) dayResult(date schedule.DateKey, items []schedule.Item, origin Origin, writtenAt time.Time) DayResult {
	return DayResult{
		Date:      date,
		Items:     schedule.MarkActive(items, c.store.Now()),
		Origin:    origin,
		WrittenAt: writtenAt,
	}
}

/*
GetWeek returns the best available schedule for the week containing ref.

A fresh aggregate entry for the same week is returned directly. Otherwise every date is
fetched one after the other, in chronological order, and a failed date falls back to
its saved entry. The aggregate entry is only rewritten when all seven fetches succeed.

If the server rejected the credential on any date, GetWeek still tries the remaining
dates and returns what it got together with ErrSessionExpired.
*/
func (c *Client) GetWeek(ctx context.Context, ref time.Time, forceRefresh bool) (WeekResult, error) {
	return c.getWeek(ctx, ref, forceRefresh, true)
}

// getWeek judges the aggregate by its own writtenAt, which is the week namespace's
// companion stamp, plus a match on the week start. The global stamp is not used: a
// write to any other namespace would otherwise make a stale week look fresh.
func (c *Client) getWeek(ctx context.Context, ref time.Time, force, notify bool) (WeekResult, error) {
	const op = "getWeek"
	week := schedule.WeekOf(ref.In(c.loc), c.firstDay)
	res := WeekResult{
		Week:    week,
		Days:    make(map[schedule.DateKey][]schedule.Item, len(week)),
		Origins: make(map[schedule.DateKey]Origin, len(week)),
	}

	if !force {
		agg, ok := cache.Read[weekRecord](ctx, c.store, cache.WeekKey())
		if ok && agg.Payload.Start == week.Start() && len(agg.Payload.Days) > 0 &&
			c.store.IsFresh(agg.WrittenAt, c.weekTTL) {
			c.metrics.Hit()
			now := c.store.Now()
			for _, d := range week {
				if items, ok := agg.Payload.Days[d]; ok {
					res.Days[d] = schedule.MarkActive(items, now)
					res.Origins[d] = OriginCache
				}
			}
			return res, nil
		}
	}
	c.metrics.Miss()

	if !c.gate.HasValidCredential(ctx) {
		return res, cache.NewError(cache.KindAuthRequired, op, cache.WeekKey(), nil)
	}

	online := c.probe.IsReachable(ctx)
	var (
		expired  error
		lastErr  error
		degraded []string
	)
	now := c.store.Now()
	for _, d := range week {
		if online {
			items, err := c.fetchDay(ctx, d)
			if err == nil {
				res.Days[d] = schedule.MarkActive(items, now)
				res.Origins[d] = OriginNetwork
				continue
			}
			lastErr = err
			if expired == nil && errors.Is(err, cache.ErrCredentialRejected) {
				expired = err
			}
			c.logger.Info("week: day fetch failed", "date", d, "error", err)
		}
		res.Failed = append(res.Failed, d)

		key := cache.DayKey(d.String())
		if cached, ok := cache.Read[[]schedule.Item](ctx, c.store, key); ok {
			res.Days[d] = schedule.MarkActive(cached.Payload, now)
			res.Origins[d] = OriginFallback
			degraded = append(degraded, key)
		}
	}

	if len(degraded) > 0 {
		for range degraded {
			c.metrics.Fallback()
		}
		c.logger.Info("serving saved schedule", "op", op, "week", week.Start(), "degraded", len(degraded))
		if notify && c.hook != nil {
			c.hook.OnDegraded(ctx, c, degraded)
		}
	}

	switch {
	case expired != nil:
		return res, cache.NewError(cache.KindSessionExpired, op, cache.WeekKey(), expired)
	case len(res.Days) == 0 && !online:
		return res, cache.NewError(cache.KindNoNetworkNoCache, op, cache.WeekKey(), nil)
	case len(res.Days) == 0:
		return res, cache.NewError(cache.KindNoDataAvailable, op, cache.WeekKey(), lastErr)
	}

	if len(res.Failed) == 0 {
		// Active is not persisted, so the marked items can be stored as they are.
		_ = cache.Write(ctx, c.store, cache.WeekKey(), weekRecord{Start: week.Start(), Days: res.Days})
	}
	return res, nil
}

// GetCourseInfoForGroup returns the course info of group. An unknown group is a
// result with Found false, not an error.
func (c *Client) GetCourseInfoForGroup(ctx context.Context, group string, forceRefresh bool) (CourseResult, error) {
	return c.getCourse(ctx, group, forceRefresh, true)
}

func (c *Client) getCourse(ctx context.Context, group string, force, notify bool) (CourseResult, error) {
	const op = "getCourseInfoForGroup"
	group = strings.TrimSpace(group)
	if group == "" {
		return CourseResult{}, cache.NewError(cache.KindInvalidInput, op, "", errors.New("empty group name"))
	}
	key := cache.CourseKey(group)

	cached, ok := cache.Read[schedule.CourseInfo](ctx, c.store, key)
	saved := func(origin Origin) CourseResult {
		return CourseResult{Group: group, Info: cached.Payload, Found: true, Origin: origin, WrittenAt: cached.WrittenAt}
	}
	if ok && !force && c.store.IsFresh(cached.WrittenAt, c.courseTTL) {
		c.metrics.Hit()
		return saved(OriginCache), nil
	}
	c.metrics.Miss()

	if !c.gate.HasValidCredential(ctx) {
		return CourseResult{}, cache.NewError(cache.KindAuthRequired, op, key, nil)
	}

	if !c.probe.IsReachable(ctx) {
		if ok {
			c.servingSaved(ctx, op, key, nil, notify)
			return saved(OriginFallback), nil
		}
		return CourseResult{}, cache.NewError(cache.KindNoNetworkNoCache, op, key, nil)
	}

	info, err := c.remote.FetchCourse(ctx, group)
	switch {
	case err == nil:
		_ = cache.Write(ctx, c.store, key, info)
		return CourseResult{Group: group, Info: info, Found: true, Origin: OriginNetwork, WrittenAt: c.store.Now()}, nil
	case errors.Is(err, remote.ErrNotFound):
		// The group is gone; do not keep serving what we had for it.
		_ = c.store.Invalidate(ctx, key)
		return CourseResult{Group: group, Origin: OriginNetwork}, nil
	case errors.Is(err, cache.ErrCredentialRejected):
		return CourseResult{}, cache.NewError(cache.KindSessionExpired, op, key, err)
	case ok:
		c.servingSaved(ctx, op, key, err, notify)
		return saved(OriginFallback), nil
	}
	return CourseResult{}, cache.NewError(cache.KindFetchFailed, op, key, err)
}

// ClearCache drops every schedule entry, e.g. on logout. Failures are logged only.
func (c *Client) ClearCache(ctx context.Context) {
	if err := c.store.InvalidateAll(ctx, cache.SchedulePrefix); err != nil {
		c.logger.Warn("clear schedule cache", "error", err)
	}
}

/*
Reload re-fetches one cache key written by this client. It implements types.Loader,
which is how refresh hooks bring degraded keys back.

Reload never calls the hook itself, and returns an error when the fetch failed even if
saved data could have been served.
*/
func (c *Client) Reload(ctx context.Context, key string) error {
	switch {
	case strings.HasPrefix(key, cache.DayNamespace+"."):
		res, err := c.getDay(ctx, schedule.DateKey(strings.TrimPrefix(key, cache.DayNamespace+".")), true, false)
		if err == nil && res.Degraded() {
			err = errStillDegraded
		}
		return err
	case strings.HasPrefix(key, cache.CourseNamespace+"."):
		res, err := c.getCourse(ctx, strings.TrimPrefix(key, cache.CourseNamespace+"."), true, false)
		if err == nil && res.Degraded() {
			err = errStillDegraded
		}
		return err
	case key == cache.WeekKey():
		res, err := c.getWeek(ctx, c.store.Now(), true, false)
		if err == nil && len(res.Failed) > 0 {
			err = errStillDegraded
		}
		return err
	}
	return cache.NewError(cache.KindInvalidInput, "reload", key, errors.New("no fetch is known for this key"))
}

func (c *Client) servingSaved(ctx context.Context, op, key string, cause error, notify bool) {
	c.metrics.Fallback()
	if cause != nil {
		c.logger.Info("serving saved data", "op", op, "key", key, "error", cause)
	} else {
		c.logger.Info("serving saved data, offline", "op", op, "key", key)
	}
	if notify && c.hook != nil {
		c.hook.OnDegraded(ctx, c, []string{key})
	}
}
