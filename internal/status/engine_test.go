package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hray3182/lifeline-checkin/internal/models"
)

var taipei = time.FixedZone("Asia/Taipei", 8*3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, taipei)
}

func TestPendingAndOverdueBoundary(t *testing.T) {
	all := []string{"9:00 AM"}
	now := at(10, 9, 0)

	assert.Equal(t, []string{"9:00 AM"}, Pending(all, nil, now))
	assert.Empty(t, Overdue(all, nil, now))

	later := now.Add(time.Second)
	assert.Equal(t, []string{"9:00 AM"}, Overdue(all, nil, later))
}

func TestOverdueSkipsMalformedAndCompleted(t *testing.T) {
	all := []string{"7:00 AM", "lunch", "8:00am", "6:00 PM"}
	got := Overdue(all, []string{"7:00 AM"}, at(10, 12, 0))
	assert.Equal(t, []string{"8:00 AM"}, got)
}

func TestAllCompletedIgnoresFutureEntries(t *testing.T) {
	all := []string{"9:00 AM", "6:00 PM"}
	assert.True(t, AllCompleted(all, []string{"9:00 AM"}, at(10, 12, 0)))
	assert.False(t, AllCompleted(all, nil, at(10, 12, 0)))
	assert.True(t, AllCompleted(all, nil, at(10, 8, 0)))
}

func TestAllCompletedOnceOverdueMarked(t *testing.T) {
	sets := [][]string{
		{"9:00 AM"},
		{"9:00 AM", "6:00 PM"},
		{"12:00 AM", "12:00 PM", "11:59 PM"},
		{"bad", "7:30 AM"},
	}
	for _, all := range sets {
		for _, now := range []time.Time{at(10, 0, 0), at(10, 9, 0), at(10, 9, 1), at(10, 13, 0), at(10, 23, 59)} {
			overdue := Overdue(all, nil, now)
			assert.True(t, AllCompleted(all, overdue, now), "%v at %s", all, now)
		}
	}
}

func TestToResolve(t *testing.T) {
	all := []string{"9:00 AM", "1:00 PM", "6:00 PM"}

	early := ToResolve(all, nil, at(10, 7, 0))
	assert.Equal(t, []string{"9:00 AM"}, early)

	late := ToResolve(all, nil, at(10, 14, 0))
	assert.Equal(t, []string{"9:00 AM", "1:00 PM"}, late)

	exact := ToResolve(all, []string{"9:00 AM"}, at(10, 13, 0))
	assert.Equal(t, []string{"1:00 PM"}, exact)

	assert.Empty(t, ToResolve(all, all, at(10, 20, 0)))
}

func TestNextExpectedPreferenceOrder(t *testing.T) {
	all := []string{"9:00 AM", "6:00 PM"}
	now := at(10, 12, 0)
	checkedIn := at(10, 9, 30)

	next := NextExpected(all, now, &checkedIn, []string{"9:00 AM"})
	require.NotNil(t, next)
	assert.Equal(t, at(10, 18, 0), *next)

	next = NextExpected(all, at(10, 19, 0), &checkedIn, []string{"9:00 AM"})
	require.NotNil(t, next)
	assert.Equal(t, at(10, 18, 0), *next, "running late keeps pointing at the missed entry")

	done := at(10, 19, 0)
	next = NextExpected(all, done, &done, all)
	require.NotNil(t, next)
	assert.Equal(t, at(11, 9, 0), *next)
}

func TestNextExpectedIgnoresCompletionFromAnotherDay(t *testing.T) {
	yesterday := at(9, 9, 5)
	next := NextExpected([]string{"9:00 AM"}, at(10, 12, 0), &yesterday, []string{"9:00 AM"})
	require.NotNil(t, next)
	assert.Equal(t, at(10, 9, 0), *next)
}

func TestNextExpectedEmpty(t *testing.T) {
	assert.Nil(t, NextExpected(nil, at(10, 8, 0), nil, nil))
	assert.Nil(t, NextExpected([]string{"whenever"}, at(10, 8, 0), nil, nil))
}

func TestStreakState(t *testing.T) {
	assert.Equal(t, SameDay, StreakStateFor(at(10, 0, 1), at(10, 23, 59)))
	assert.Equal(t, Consecutive, StreakStateFor(at(9, 23, 59), at(10, 0, 1)))
	assert.Equal(t, Broken, StreakStateFor(at(8, 12, 0), at(10, 12, 0)))
	assert.Equal(t, SameDay, StreakStateFor(at(10, 12, 0), at(10, 11, 0)))
}

func TestStreakStateUsesNowLocation(t *testing.T) {
	// 2026-03-09 20:00 UTC is already 2026-03-10 in Taipei.
	last := time.Date(2026, time.March, 9, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, SameDay, StreakStateFor(last, at(10, 9, 0)))
}

func TestNextStreakTransitions(t *testing.T) {
	yesterday := at(9, 9, 0)
	counter := models.StreakCounter{Current: 4, StartDate: "2026-03-06", LastCheckIn: &yesterday}

	next, state := NextStreak(counter, at(10, 9, 0))
	assert.Equal(t, Consecutive, state)
	assert.Equal(t, 5, next.Current)
	assert.Equal(t, "2026-03-06", next.StartDate)

	again, state := NextStreak(next, at(10, 18, 0))
	assert.Equal(t, SameDay, state)
	assert.Equal(t, 5, again.Current)
	assert.Equal(t, at(10, 18, 0), *again.LastCheckIn)

	threeDaysAgo := at(7, 9, 0)
	counter.LastCheckIn = &threeDaysAgo
	reset, state := NextStreak(counter, at(10, 9, 0))
	assert.Equal(t, Broken, state)
	assert.Equal(t, 1, reset.Current)
	assert.Equal(t, "2026-03-10", reset.StartDate)
}

func TestNextStreakRepairsMissingLastCheckIn(t *testing.T) {
	next, state := NextStreak(models.StreakCounter{Current: 12, StartDate: "2025-01-01"}, at(10, 9, 0))
	assert.Equal(t, Broken, state)
	assert.Equal(t, 1, next.Current)
	assert.Equal(t, "2026-03-10", next.StartDate)
	require.NotNil(t, next.LastCheckIn)
}

func TestEffectiveCompletedDayBoundary(t *testing.T) {
	stored := []string{"9:00 AM", "6:00 PM"}
	assert.Nil(t, EffectiveCompleted(stored, "2026-03-09", at(10, 8, 0)))
	assert.Equal(t, stored, EffectiveCompleted(stored, "2026-03-10", at(10, 8, 0)))

	// a stale set must not satisfy today's overdue entry
	completed := EffectiveCompleted(stored, "2026-03-09", at(10, 10, 0))
	assert.Equal(t, []string{"9:00 AM"}, Overdue(stored, completed, at(10, 10, 0)))
}

func TestCalendarDaysBetweenAcrossMonths(t *testing.T) {
	from := time.Date(2026, time.February, 28, 22, 0, 0, 0, taipei)
	assert.Equal(t, 1, CalendarDaysBetween(from, at(1, 1, 0)))
	assert.Equal(t, 0, CalendarDaysBetween(at(1, 0, 0), at(1, 23, 0)))
}
