// Package schedule holds the timetable model: date partitions, sessions and the
// normalization applied when upstream payloads enter the app.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DateKey is a calendar date in canonical YYYY-MM-DD form.
// Keys sort lexicographically in chronological order.
type DateKey string

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) DateKey {
	return DateKey(t.Format(dateLayout))
}

// ParseDateKey accepts YYYY-MM-DD, DD.MM.YYYY or an RFC 3339 timestamp.
func ParseDateKey(s string) (DateKey, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "02.01.2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return "", fmt.Errorf("schedule: %q is not a date", s)
}

// Time returns midnight of the date in loc.
func (d DateKey) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(dateLayout, string(d), loc)
}

// AddDays returns the date n days later (earlier for negative n).
func (d DateKey) AddDays(n int) DateKey {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	// Noon UTC keeps day arithmetic away from DST edges.
	return DateOf(time.Date(t.Year(), t.Month(), t.Day()+n, 12, 0, 0, 0, time.UTC))
}

// Valid reports whether d is a canonical date.
func (d DateKey) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

func (d DateKey) String() string { return string(d) }

// WeekPartition is the 7 contiguous dates of one week, in chronological order.
type WeekPartition [7]DateKey

// WeekOf computes the week containing ref, starting on firstDay.
func WeekOf(ref time.Time, firstDay time.Weekday) WeekPartition {
	offset := (int(ref.Weekday()) - int(firstDay) + 7) % 7
	start := DateOf(ref).AddDays(-offset)

	var w WeekPartition
	for i := range w {
		w[i] = start.AddDays(i)
	}
	return w
}

// Start is the first date of the week.
func (w WeekPartition) Start() DateKey { return w[0] }

// End is the last date of the week.
func (w WeekPartition) End() DateKey { return w[6] }

// Contains reports whether d falls inside the week.
func (w WeekPartition) Contains(d DateKey) bool {
	return d >= w[0] && d <= w[6]
}
