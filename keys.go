package cache

import "strings"

// Key namespace. Every namespace also has a "<namespace>.updatedAt" companion key.
const (
	DayNamespace    = "schedule.day"
	WeekNamespace   = "schedule.week"
	CourseNamespace = "schedule.course"

	// SchedulePrefix covers every schedule key, used by ClearCache.
	SchedulePrefix = "schedule."

	updatedAtSuffix = ".updatedAt"
	globalKey       = "cache"
)

// partitioned namespaces have one key per date or group.
var partitioned = []string{DayNamespace, CourseNamespace}

// DayKey returns the key for one date's schedule. date must be a canonical YYYY-MM-DD.
func DayKey(date string) string { return DayNamespace + "." + date }

// WeekKey returns the key of the aggregate week map.
func WeekKey() string { return WeekNamespace }

// CourseKey returns the key for a group's course info.
func CourseKey(group string) string { return CourseNamespace + "." + group }

// UpdatedAtKey returns the companion timestamp key of a namespace.
func UpdatedAtKey(namespace string) string { return namespace + updatedAtSuffix }

// NamespaceOf maps a key to the namespace whose companion timestamp it updates.
//
//	schedule.day.2024-09-02 -> schedule.day
//	schedule.week           -> schedule.week
func NamespaceOf(key string) string {
	for _, ns := range partitioned {
		if strings.HasPrefix(key, ns+".") {
			return ns
		}
	}
	return key
}

func isCompanion(key string) bool {
	return strings.HasSuffix(key, updatedAtSuffix)
}
