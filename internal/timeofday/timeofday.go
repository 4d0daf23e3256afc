// Package timeofday parses and normalizes the daily check-in times users
// schedule, e.g. "9:00 AM".
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultEntry is the schedule every account starts with. A stored schedule
// set that is empty behaves as if it contained only this entry.
const DefaultEntry = "9:00 AM"

// ErrMalformed is returned when a string is not a valid "H:MM AM/PM" time.
var ErrMalformed = errors.New("timeofday: malformed schedule time")

// TimeOfDay is a wall clock time with Hour in 0..23.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Parse accepts "9:00 AM", "9:00am" and "09:00 PM" style input.
func Parse(s string) (TimeOfDay, error) {
	fields := strings.Fields(clean(s))
	if len(fields) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	meridiem := fields[1]
	if meridiem != "AM" && meridiem != "PM" {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	hourStr, minuteStr, ok := strings.Cut(fields[0], ":")
	if !ok || !isDigits(hourStr) || len(hourStr) > 2 || len(minuteStr) != 2 || !isDigits(minuteStr) {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minuteStr)
	if hour < 1 || hour > 12 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	hour %= 12
	if meridiem == "PM" {
		hour += 12
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Normalize returns the key used to compare schedule entries. Parseable
// entries come back in canonical form ("9:00 AM"); anything else is trimmed
// and upper-cased so it can still be stored and displayed.
func Normalize(s string) string {
	if t, err := Parse(s); err == nil {
		return t.String()
	}
	return clean(s)
}

// String formats the time as "H:MM AM".
func (t TimeOfDay) String() string {
	hour := t.Hour % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "AM"
	if t.Hour >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hour, t.Minute, meridiem)
}

// On returns the instant of t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

// clean trims, upper-cases, collapses whitespace and inserts the space a
// "9:00AM" style input is missing.
func clean(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			head := s[:len(s)-len(suffix)]
			if !strings.HasSuffix(head, " ") {
				return head + " " + suffix
			}
		}
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
