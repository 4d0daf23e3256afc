package status

import (
	"time"

	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

// DateLayout is the calendar date format used for reset and streak dates.
const DateLayout = "2006-01-02"

// DateKey returns t's calendar date in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// IsSameLocalDay reports whether a and b fall on the same calendar day as
// seen from b's location. Every day-boundary decision goes through here.
func IsSameLocalDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CalendarDaysBetween counts calendar day boundaries from from to to, in
// to's location. It ignores elapsed hours, so 23:59 to 00:01 is one day.
func CalendarDaysBetween(from, to time.Time) int {
	from = from.In(to.Location())
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// EffectiveCompleted returns the completion set that applies at now. A set
// stamped with another day's reset date is stale and counts as empty.
func EffectiveCompleted(completed []string, resetDate string, now time.Time) []string {
	if resetDate != DateKey(now) {
		return nil
	}
	return timeofday.NormalizeAll(completed)
}

// EffectiveSchedules normalizes the stored set; an empty set means the
// implicit default entry.
func EffectiveSchedules(stored []string) []string {
	entries := timeofday.NormalizeAll(stored)
	if len(entries) == 0 {
		return []string{timeofday.DefaultEntry}
	}
	return entries
}
