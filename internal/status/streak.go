package status

import (
	"time"

	"github.com/hray3182/lifeline-checkin/internal/models"
)

// StreakState classifies a new check-in against the previous one.
type StreakState string

const (
	SameDay     StreakState = "same_day"
	Consecutive StreakState = "consecutive"
	Broken      StreakState = "broken"
)

// StreakStateFor compares calendar days, not elapsed hours. A previous
// check-in later than now (clock skew) counts as the same day.
func StreakStateFor(lastCheckIn, now time.Time) StreakState {
	switch days := CalendarDaysBetween(lastCheckIn, now); {
	case days <= 0:
		return SameDay
	case days == 1:
		return Consecutive
	default:
		return Broken
	}
}

// NextStreak applies a check-in at now to counter. A counter without a last
// check-in restarts at 1, which also repairs a positive streak stored without
// one.
func NextStreak(counter models.StreakCounter, now time.Time) (models.StreakCounter, StreakState) {
	checkedIn := now
	restart := models.StreakCounter{Current: 1, StartDate: DateKey(now), LastCheckIn: &checkedIn}

	if counter.LastCheckIn == nil {
		return restart, Broken
	}

	state := StreakStateFor(*counter.LastCheckIn, now)
	switch state {
	case SameDay:
		next := counter
		if next.Current < 1 {
			next.Current = 1
		}
		if next.StartDate == "" {
			next.StartDate = DateKey(now)
		}
		if now.After(*counter.LastCheckIn) {
			next.LastCheckIn = &checkedIn
		} else {
			last := *counter.LastCheckIn
			next.LastCheckIn = &last
		}
		return next, state
	case Consecutive:
		if counter.Current < 1 {
			return restart, state
		}
		next := counter
		next.Current++
		next.LastCheckIn = &checkedIn
		if next.StartDate == "" {
			next.StartDate = DateKey(now.AddDate(0, 0, 1-next.Current))
		}
		return next, state
	default:
		return restart, state
	}
}
