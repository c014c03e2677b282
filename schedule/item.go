package schedule

import (
	"sort"
	"time"
)

// SessionKind is the type of a timetabled session.
type SessionKind string

const (
	KindLecture  SessionKind = "lecture"
	KindPractice SessionKind = "practice"
	KindLab      SessionKind = "lab"
	KindSeminar  SessionKind = "seminar"
	KindExam     SessionKind = "exam"
	KindOther    SessionKind = "other"
)

// Item is one timetabled session in canonical form.
type Item struct {
	Subject    string      `json:"subject"`
	Kind       SessionKind `json:"kind"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Room       string      `json:"room"`
	Instructor string      `json:"instructor"`
	Groups     []string    `json:"groups"`
	Subgroup   int         `json:"subgroup,omitempty"` // 0 = whole group

	// Active is derived from the wall clock at query time and never cached.
	Active bool `json:"-"`
}

// CourseInfo describes the study group a schedule belongs to.
type CourseInfo struct {
	Group      string `json:"group"`
	Course     int    `json:"course"` // year of study
	Faculty    string `json:"faculty"`
	Speciality string `json:"speciality"`
	Form       string `json:"form,omitempty"` // full-time, part-time, ...
}

// ActiveAt reports whether the session is running at now. End is exclusive.
func (it Item) ActiveAt(now time.Time) bool {
	return !now.Before(it.Start) && now.Before(it.End)
}

// MarkActive returns a copy of items with Active set for the sessions running at now.
func MarkActive(items []Item, now time.Time) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Active = it.ActiveAt(now)
		out[i] = it
	}
	return out
}

// FilterSubgroup keeps whole-group sessions and the sessions of subgroup.
// A subgroup of 0 keeps everything.
func FilterSubgroup(items []Item, subgroup int) []Item {
	if subgroup == 0 {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Subgroup == 0 || it.Subgroup == subgroup {
			out = append(out, it)
		}
	}
	return out
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].Subgroup < items[j].Subgroup
	})
}
