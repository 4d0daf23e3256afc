package status

import (
	"time"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

// Status is what the UI and the alerting path show for a user.
type Status string

const (
	Safe        Status = "safe"
	RunningLate Status = "running_late"
	SOSActive   Status = "sos_active"
)

// Input is everything Derive needs. Now must already be in the user's
// timezone.
type Input struct {
	Schedules      []string
	CompletedToday []string
	ResetDate      string
	LastCheckIn    *time.Time
	Streak         int
	VacationMode   bool
	SOSActive      bool
	CreatedAt      time.Time
	Now            time.Time
}

// View is the full derived status of a user at one instant.
type View struct {
	Status       Status     `json:"status"`
	NextExpected *time.Time `json:"next_expected"`
	Streak       int        `json:"streak"`
	Schedules    []string   `json:"schedules"`
	Completed    []string   `json:"completed"`
	Overdue      []string   `json:"overdue"`
	Pending      []string   `json:"pending"`
	EvaluatedAt  time.Time  `json:"evaluated_at"`
}

// InputFor builds the Derive input from a stored snapshot, moving now into
// the user's timezone.
func InputFor(st *models.UserState, now time.Time, fallback *time.Location) Input {
	return Input{
		Schedules:      st.Schedules,
		CompletedToday: st.CompletedToday,
		ResetDate:      st.ResetDate,
		LastCheckIn:    st.Streak.LastCheckIn,
		Streak:         st.Streak.Current,
		VacationMode:   st.VacationMode,
		SOSActive:      st.SOSActive,
		CreatedAt:      st.CreatedAt,
		Now:            now.In(st.Location(fallback)),
	}
}

// Derive recomputes the whole view from a snapshot. Callers re-run it on
// every change instead of patching a previous View.
func Derive(in Input) View {
	schedules := EffectiveSchedules(in.Schedules)
	completed := EffectiveCompleted(in.CompletedToday, in.ResetDate, in.Now)

	overdue := Overdue(schedules, completed, in.Now)
	if firstDayDefaultOnly(schedules, in.CreatedAt, in.Now) {
		overdue = nil
	}

	view := View{
		Streak:      in.Streak,
		Schedules:   schedules,
		Completed:   completed,
		Overdue:     overdue,
		Pending:     Pending(schedules, completed, in.Now),
		EvaluatedAt: in.Now,
	}

	switch {
	case in.SOSActive:
		view.Status = SOSActive
	case in.VacationMode:
		view.Status = Safe
		return view
	case len(overdue) > 0:
		view.Status = RunningLate
	default:
		view.Status = Safe
	}

	view.NextExpected = NextExpected(schedules, in.Now, in.LastCheckIn, completed)
	return view
}

// firstDayDefaultOnly is the new-account grace: on the day the account was
// created, the implicit default entry alone never makes the user late.
func firstDayDefaultOnly(schedules []string, createdAt, now time.Time) bool {
	if createdAt.IsZero() || !IsSameLocalDay(createdAt, now) {
		return false
	}
	return len(schedules) == 1 && schedules[0] == timeofday.DefaultEntry
}
