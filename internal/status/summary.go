package status

import (
	"sort"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

// DaySummary aggregates one calendar day of check-in history.
type DaySummary struct {
	Date      string  `json:"date"`
	CheckIns  int     `json:"check_ins"`
	Satisfied int     `json:"satisfied"`
	Scheduled int     `json:"scheduled"`
	Rate      float64 `json:"rate"`
}

// DailySummaries groups records by calendar day in loc. Scheduled is the
// largest ScheduledCount snapshot seen that day, so schedule edits made later
// never rewrite history.
func DailySummaries(records []models.CheckInRecord, loc *time.Location) []DaySummary {
	if loc == nil {
		loc = time.Local
	}

	type acc struct {
		checkIns  int
		scheduled int
		satisfied map[string]struct{}
	}
	days := make(map[string]*acc)
	for _, r := range records {
		key := DateKey(r.Timestamp.In(loc))
		a, ok := days[key]
		if !ok {
			a = &acc{satisfied: make(map[string]struct{})}
			days[key] = a
		}
		a.checkIns++
		if r.ScheduledCount > a.scheduled {
			a.scheduled = r.ScheduledCount
		}
		for _, e := range timeofday.NormalizeAll(r.ScheduledFor) {
			a.satisfied[e] = struct{}{}
		}
	}

	out := make([]DaySummary, 0, len(days))
	for key, a := range days {
		s := DaySummary{
			Date:      key,
			CheckIns:  a.checkIns,
			Satisfied: len(a.satisfied),
			Scheduled: a.scheduled,
		}
		if s.Scheduled > 0 {
			s.Rate = float64(min(s.Satisfied, s.Scheduled)) / float64(s.Scheduled)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
