// Package status holds the pure schedule calculus: which daily check-in times
// are pending, overdue or satisfied at an instant, the streak transitions, and
// the derived status shown to users. Nothing here performs I/O and "now" is
// always passed in.
package status

import (
	"sort"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

type slot struct {
	entry string
	at    time.Time
}

// slotsToday parses entries onto now's calendar day in chronological order.
// Malformed entries are skipped.
func slotsToday(entries []string, now time.Time) []slot {
	normalized := timeofday.NormalizeAll(entries)
	out := make([]slot, 0, len(normalized))
	for _, e := range normalized {
		tod, err := timeofday.Parse(e)
		if err != nil {
			continue
		}
		out = append(out, slot{entry: e, at: tod.On(now)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].at.Before(out[j].at)
	})
	return out
}

func completedSet(completed []string) map[string]struct{} {
	set := make(map[string]struct{}, len(completed))
	for _, e := range timeofday.NormalizeAll(completed) {
		set[e] = struct{}{}
	}
	return set
}

func filter(all, completed []string, now time.Time, keep func(at time.Time) bool) []string {
	done := completedSet(completed)
	var out []string
	for _, s := range slotsToday(all, now) {
		if _, ok := done[s.entry]; ok {
			continue
		}
		if keep(s.at) {
			out = append(out, s.entry)
		}
	}
	return out
}

// Pending returns entries not yet completed whose time today is at or before
// now.
func Pending(all, completed []string, now time.Time) []string {
	return filter(all, completed, now, func(at time.Time) bool {
		return !at.After(now)
	})
}

// Overdue returns entries not yet completed whose time today is strictly
// before now. It differs from Pending only at the exact scheduled instant.
func Overdue(all, completed []string, now time.Time) []string {
	return filter(all, completed, now, func(at time.Time) bool {
		return at.Before(now)
	})
}

// AllCompleted reports whether every entry that has already passed today is
// completed. Entries later today never block.
func AllCompleted(all, completed []string, now time.Time) bool {
	return len(Overdue(all, completed, now)) == 0
}

// ToResolve returns the entries a check-in at now satisfies: every overdue
// entry when any exist, otherwise only the nearest upcoming one.
func ToResolve(all, completed []string, now time.Time) []string {
	if overdue := Overdue(all, completed, now); len(overdue) > 0 {
		return overdue
	}
	upcoming := filter(all, completed, now, func(at time.Time) bool {
		return !at.Before(now)
	})
	if len(upcoming) == 0 {
		return nil
	}
	return upcoming[:1]
}

// NextExpected returns the instant the next check-in is due. Completed entries
// are excluded, and only count when lastCheckIn is on now's day. Preference:
// the nearest entry later today, then the earliest entry today still
// outstanding (running late), then the earliest entry tomorrow. It returns nil
// only when no entry can be parsed.
func NextExpected(schedules []string, now time.Time, lastCheckIn *time.Time, completedToday []string) *time.Time {
	if lastCheckIn == nil || !IsSameLocalDay(*lastCheckIn, now) {
		completedToday = nil
	}
	done := completedSet(completedToday)

	today := slotsToday(schedules, now)
	if len(today) == 0 {
		return nil
	}

	var earliestOutstanding *time.Time
	for _, s := range today {
		if _, ok := done[s.entry]; ok {
			continue
		}
		at := s.at
		if at.After(now) {
			return &at
		}
		if earliestOutstanding == nil {
			earliestOutstanding = &at
		}
	}
	if earliestOutstanding != nil {
		return earliestOutstanding
	}

	tomorrow := slotsToday(schedules, now.AddDate(0, 0, 1))
	at := tomorrow[0].at
	return &at
}
