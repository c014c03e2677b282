package schedsync

import (
	"time"

	"github.com/campusapp/schedule-cache/schedule"
)

// Origin says where the data in a result came from.
type Origin uint8

const (
	// OriginNetwork: fetched just now.
	OriginNetwork Origin = iota + 1
	// OriginCache: served from a cache entry that is still fresh.
	OriginCache
	// OriginFallback: served from a stale or unverified cache entry because the network
	// path failed or was unavailable. The UI should show it as offline data.
	OriginFallback
)

func (o Origin) String() string {
	switch o {
	case OriginNetwork:
		return "network"
	case OriginCache:
		return "cache"
	case OriginFallback:
		return "fallback"
	}
	return "unknown"
}

// DayResult is the schedule of one date.
type DayResult struct {
	Date   schedule.DateKey
	Items  []schedule.Item
	Origin Origin

	// WrittenAt is when the data was stored; for network results it is the fetch time.
	WrittenAt time.Time
}

// Degraded reports whether the items are saved data served instead of a failed fetch.
func (r DayResult) Degraded() bool { return r.Origin == OriginFallback }

// WeekResult is the best available schedule for a WeekPartition.
type WeekResult struct {
	Week schedule.WeekPartition

	// Days holds every date that produced data. A date with no sessions maps to an
	// empty slice; a date with no data at all is missing.
	Days map[schedule.DateKey][]schedule.Item

	// Origins has an entry for every date in Days.
	Origins map[schedule.DateKey]Origin

	// Failed lists the dates that got no network data (fetch failed or offline), in
	// chronological order, whether or not saved data was found for them.
	Failed []schedule.DateKey
}

// Origin of one date, 0 when the date has no data.
func (r WeekResult) Origin(d schedule.DateKey) Origin { return r.Origins[d] }

// DegradedDates lists the dates served from saved data, in chronological order.
func (r WeekResult) DegradedDates() []schedule.DateKey {
	var out []schedule.DateKey
	for _, d := range r.Week {
		if r.Origins[d] == OriginFallback {
			out = append(out, d)
		}
	}
	return out
}

// AnyDegraded reports whether at least one day is saved data.
func (r WeekResult) AnyDegraded() bool {
	for _, o := range r.Origins {
		if o == OriginFallback {
			return true
		}
	}
	return false
}

// Complete reports whether every date of the week has data.
func (r WeekResult) Complete() bool {
	return len(r.Days) == len(r.Week)
}

// CourseResult is the course info of a group.
type CourseResult struct {
	Group string
	Info  schedule.CourseInfo

	// Found is false when the backend does not know the group.
	Found bool

	Origin    Origin
	WrittenAt time.Time
}

// Degraded reports whether Info is saved data served instead of a failed fetch.
func (r CourseResult) Degraded() bool { return r.Origin == OriginFallback }

// weekRecord is the aggregate week map as stored under cache.WeekKey().
type weekRecord struct {
	Start schedule.DateKey                     `json:"start"`
	Days  map[schedule.DateKey][]schedule.Item `json:"days"`
}
