package schedule_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/campusapp/schedule-cache/schedule"
)

func TestNormalizeCollapsesSpellings(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)

	a := []byte(`[{"subject":"Physics","kind":"lecture","start":"09:00","end":"10:30",
		"room":"101","instructor":"Ivanov I.","groups":["A-1","A-2"]}]`)
	b := []byte(`{"lessons":[{"discipline":"Physics","lessonType":"Лекция","timeStart":"09:00:00",
		"timeEnd":"10:30","auditory":"101","teacher":{"fullName":"Ivanov I."},"group":"A-1, A-2, A-1"}]}`)

	itemsA, droppedA, err := schedule.Normalize("2024-09-02", loc, a)
	if err != nil || droppedA != 0 {
		t.Fatalf("normalize a: %v dropped=%d", err, droppedA)
	}
	itemsB, droppedB, err := schedule.Normalize("2024-09-02", loc, b)
	if err != nil || droppedB != 0 {
		t.Fatalf("normalize b: %v dropped=%d", err, droppedB)
	}

	if !reflect.DeepEqual(itemsA, itemsB) {
		t.Fatalf("expected both spellings to collapse:\n%+v\n%+v", itemsA, itemsB)
	}

	it := itemsA[0]
	if it.Kind != schedule.KindLecture {
		t.Fatalf("expected lecture, got %s", it.Kind)
	}
	if want := time.Date(2024, 9, 2, 6, 0, 0, 0, time.UTC); !it.Start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, it.Start)
	}
}

func TestNormalizeDropsInvalidItems(t *testing.T) {
	payload := []byte(`[
		{"subject":"","start":"09:00","end":"10:00"},
		{"subject":"Chemistry","start":"11:00"},
		{"subject":"History","start":"12:00","end":"11:00"},
		{"subject":"Biology","start":"2024-09-02T13:00:00Z","end":"2024-09-02T14:30:00Z","subgroup":"2"}
	]`)

	items, dropped, err := schedule.Normalize("2024-09-02", time.UTC, payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if dropped != 3 || len(items) != 1 {
		t.Fatalf("expected 1 item and 3 dropped, got %d and %d", len(items), dropped)
	}
	if items[0].Subgroup != 2 {
		t.Fatalf("expected subgroup 2, got %d", items[0].Subgroup)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	if _, _, err := schedule.Normalize("2024-09-02", time.UTC, []byte(`{"nothing":1}`)); err == nil {
		t.Fatal("expected an error for a payload without items")
	}
	items, _, err := schedule.Normalize("2024-09-02", time.UTC, []byte(`null`))
	if err != nil || len(items) != 0 {
		t.Fatalf("expected an empty day for null, got %v %v", items, err)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	payload := []byte(`[
		{"discipline":" Algebra ","type":"практика","startTime":"12:40","endTime":"14:10","classroom":"2-14","lecturer":"Petrova","stream":["B-3"]},
		{"discipline":"Geometry","type":"lab","startTime":"08:30","endTime":"10:00","classroom":"3-01","lecturer":"Sidorov","stream":"B-3","subGroup":1}
	]`)

	first, _, err := schedule.Normalize("2024-09-03", time.UTC, payload)
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	second, dropped, err := schedule.Normalize("2024-09-03", time.UTC, encoded)
	if err != nil || dropped != 0 {
		t.Fatalf("renormalize: %v dropped=%d", err, dropped)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not idempotent:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(schedule.Canonical(first), first) {
		t.Fatal("Canonical changed already canonical items")
	}
	if first[0].Subject != "Geometry" {
		t.Fatalf("expected items sorted by start, got %s first", first[0].Subject)
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]schedule.SessionKind{
		"lecture":      schedule.KindLecture,
		"Лекция":       schedule.KindLecture,
		"practice":     schedule.KindPractice,
		"Лабораторная": schedule.KindLab,
		"seminar":      schedule.KindSeminar,
		"Экзамен":      schedule.KindExam,
		"consultation": schedule.KindOther,
		"":             schedule.KindOther,
	}
	for in, want := range tests {
		if got := schedule.ParseKind(in); got != want {
			t.Errorf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}
}
