package schedule_test

import (
	"sort"
	"testing"
	"time"

	"github.com/campusapp/schedule-cache/schedule"
)

func TestParseDateKey(t *testing.T) {
	tests := []struct {
		in   string
		want schedule.DateKey
	}{
		{"2024-09-02", "2024-09-02"},
		{" 02.09.2024 ", "2024-09-02"},
		{"2024-09-02T23:30:00+03:00", "2024-09-02"},
	}
	for _, tt := range tests {
		got, err := schedule.ParseDateKey(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseDateKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if _, err := schedule.ParseDateKey("next tuesday"); err == nil {
		t.Fatal("expected an error for a non-date")
	}
}

func TestAddDays(t *testing.T) {
	d := schedule.DateKey("2024-12-30")
	if got := d.AddDays(3); got != "2025-01-02" {
		t.Fatalf("expected 2025-01-02, got %s", got)
	}
	if got := schedule.DateKey("2024-03-01").AddDays(-1); got != "2024-02-29" {
		t.Fatalf("expected leap day, got %s", got)
	}
}

func TestDateKeysSortChronologically(t *testing.T) {
	keys := []string{"2024-10-01", "2023-12-31", "2024-09-30", "2024-01-02"}
	sort.Strings(keys)
	want := []string{"2023-12-31", "2024-01-02", "2024-09-30", "2024-10-01"}
	for i := range keys {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}
}

func TestWeekOf(t *testing.T) {
	// Thursday 5 September 2024.
	ref := time.Date(2024, 9, 5, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		firstDay time.Weekday
		start    schedule.DateKey
		end      schedule.DateKey
	}{
		{"monday start", time.Monday, "2024-09-02", "2024-09-08"},
		{"sunday start", time.Sunday, "2024-09-01", "2024-09-07"},
		{"thursday start", time.Thursday, "2024-09-05", "2024-09-11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := schedule.WeekOf(ref, tt.firstDay)
			if w.Start() != tt.start || w.End() != tt.end {
				t.Fatalf("expected %s..%s, got %s..%s", tt.start, tt.end, w.Start(), w.End())
			}
			for i := 1; i < len(w); i++ {
				if w[i] != w[i-1].AddDays(1) {
					t.Fatalf("week is not contiguous: %v", w)
				}
			}
			if !w.Contains(schedule.DateOf(ref)) {
				t.Fatal("expected week to contain the reference date")
			}
		})
	}
}

func TestWeekOfAcrossYear(t *testing.T) {
	w := schedule.WeekOf(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Monday)
	if w.Start() != "2024-12-30" || w.End() != "2025-01-05" {
		t.Fatalf("unexpected week %v", w)
	}
}
