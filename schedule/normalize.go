package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// aliases lists every upstream spelling of a canonical field, canonical name first.
// This table is the only place that knows about the alternate schemes.
var aliases = map[string][]string{
	"subject":    {"subject", "discipline", "subjectName", "name"},
	"kind":       {"kind", "type", "lessonType", "kindOfWork"},
	"start":      {"start", "startTime", "timeStart", "beginLesson"},
	"end":        {"end", "endTime", "timeEnd", "endLesson"},
	"room":       {"room", "auditory", "auditorium", "classroom"},
	"instructor": {"instructor", "teacher", "lecturer", "teacherName"},
	"groups":     {"groups", "group", "groupName", "stream"},
	"subgroup":   {"subgroup", "subGroup", "subgroupNumber"},
}

// wrappers are the envelope fields some upstreams put the item list under.
var wrappers = []string{"items", "lessons", "schedule", "data"}

var kindPrefixes = []struct {
	prefix string
	kind   SessionKind
}{
	{"lec", KindLecture}, {"лек", KindLecture}, {"лк", KindLecture},
	{"prac", KindPractice}, {"пр", KindPractice},
	{"lab", KindLab}, {"лаб", KindLab}, {"лр", KindLab},
	{"sem", KindSeminar}, {"сем", KindSeminar},
	{"exam", KindExam}, {"экз", KindExam},
}

// ParseKind maps an upstream session type to a SessionKind.
func ParseKind(s string) SessionKind {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range kindPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p.kind
		}
	}
	return KindOther
}

/*
Normalize decodes an upstream schedule payload for date into canonical items.

The payload may be a bare array or an object wrapping the array. Clock times without a
date ("08:30") are placed on date in loc. Items missing a subject or a valid time range
are dropped and counted in dropped; err is only returned when the payload itself is
unreadable. Normalizing the JSON of already canonical items returns them unchanged.
*/
func Normalize(date DateKey, loc *time.Location, payload []byte) (items []Item, dropped int, err error) {
	if loc == nil {
		loc = time.Local
	}
	raws, err := rawItems(payload)
	if err != nil {
		return nil, 0, err
	}

	items = make([]Item, 0, len(raws))
	for _, raw := range raws {
		it, err := normalizeOne(date, loc, raw)
		if err != nil {
			dropped++
			continue
		}
		items = append(items, it)
	}
	return Canonical(items), dropped, nil
}

// Canonical tidies items already in Item form: trimmed strings, canonical kinds,
// de-duplicated groups, UTC times, sorted by start. It is idempotent.
func Canonical(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Subject = strings.TrimSpace(it.Subject)
		it.Room = strings.TrimSpace(it.Room)
		it.Instructor = strings.TrimSpace(it.Instructor)
		it.Kind = ParseKind(string(it.Kind))
		it.Start = it.Start.UTC()
		it.End = it.End.UTC()
		it.Groups = cleanGroups(it.Groups)
		it.Active = false
		out[i] = it
	}
	sortItems(out)
	return out
}

func rawItems(payload []byte) ([]map[string]json.RawMessage, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, nil
	}

	var list []map[string]json.RawMessage
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, fmt.Errorf("schedule: decode items: %w", err)
		}
		return list, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("schedule: decode payload: %w", err)
	}
	for _, w := range wrappers {
		if inner, ok := envelope[w]; ok {
			return rawItems(inner)
		}
	}
	return nil, errors.New("schedule: payload has no item list")
}

func lookup(raw map[string]json.RawMessage, field string) (json.RawMessage, bool) {
	for _, name := range aliases[field] {
		if v, ok := raw[name]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func normalizeOne(date DateKey, loc *time.Location, raw map[string]json.RawMessage) (Item, error) {
	var it Item
	if v, ok := lookup(raw, "subject"); ok {
		it.Subject = text(v)
	}
	if strings.TrimSpace(it.Subject) == "" {
		return Item{}, errors.New("missing subject")
	}
	if v, ok := lookup(raw, "kind"); ok {
		it.Kind = SessionKind(text(v))
	}
	if v, ok := lookup(raw, "room"); ok {
		it.Room = text(v)
	}
	if v, ok := lookup(raw, "instructor"); ok {
		it.Instructor = text(v)
	}
	if v, ok := lookup(raw, "groups"); ok {
		it.Groups = groups(v)
	}
	if v, ok := lookup(raw, "subgroup"); ok {
		n, err := strconv.Atoi(text(v))
		if err == nil && n > 0 {
			it.Subgroup = n
		}
	}

	var err error
	if it.Start, err = clock(date, loc, raw, "start"); err != nil {
		return Item{}, err
	}
	if it.End, err = clock(date, loc, raw, "end"); err != nil {
		return Item{}, err
	}
	if !it.End.After(it.Start) {
		return Item{}, errors.New("end before start")
	}
	return it, nil
}

// text reads a string, a number, or an object carrying a name.
func text(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	var named struct {
		Name     string `json:"name"`
		FullName string `json:"fullName"`
		Title    string `json:"title"`
	}
	if err := json.Unmarshal(v, &named); err == nil {
		for _, s := range []string{named.FullName, named.Name, named.Title} {
			if s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// groups reads "A-1, A-2", ["A-1","A-2"] or [{"name":"A-1"}].
func groups(v json.RawMessage) []string {
	var list []json.RawMessage
	if err := json.Unmarshal(v, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, g := range list {
			out = append(out, text(g))
		}
		return out
	}
	return strings.Split(text(v), ",")
}

func cleanGroups(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, g := range in {
		g = strings.TrimSpace(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

func clock(date DateKey, loc *time.Location, raw map[string]json.RawMessage, field string) (time.Time, error) {
	v, ok := lookup(raw, field)
	if !ok {
		return time.Time{}, fmt.Errorf("missing %s", field)
	}
	s := text(v)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return time.ParseInLocation(dateLayout+" "+layout, string(date)+" "+s, loc)
		}
	}
	return time.Time{}, fmt.Errorf("bad %s %q", field, s)
}
