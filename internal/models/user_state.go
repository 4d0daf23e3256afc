package models

import (
	"slices"
	"time"
)

// StreakCounter tracks consecutive calendar days with at least one check-in.
type StreakCounter struct {
	Current     int        `json:"current_streak"`
	StartDate   string     `json:"start_date"` // YYYY-MM-DD in the user's timezone
	LastCheckIn *time.Time `json:"last_check_in"`
}

// Location is the last known location reported with a check-in.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserState is the shared, concurrently written document describing one
// user's schedules and today's progress.
type UserState struct {
	UserID         string        `json:"user_id"`
	Schedules      []string      `json:"schedules"`
	CompletedToday []string      `json:"completed_today"`
	ResetDate      string        `json:"reset_date"` // calendar day CompletedToday belongs to
	Streak         StreakCounter `json:"streak"`
	NextExpected   *time.Time    `json:"next_expected"`
	MissedToday    int           `json:"missed_today"`
	VacationMode   bool          `json:"vacation_mode"`
	SOSActive      bool          `json:"sos_active"`
	Timezone       string        `json:"timezone"`
	LastLocation   *Location     `json:"last_location,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewUserState returns the state of an account seen for the first time.
func NewUserState(userID string, defaultSchedule string, timezone string, now time.Time) *UserState {
	return &UserState{
		UserID:         userID,
		Schedules:      []string{defaultSchedule},
		CompletedToday: []string{},
		Timezone:       timezone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Location resolves the user's timezone, falling back to fallback when the
// stored name is empty or unknown.
func (s *UserState) Location(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.Local
	}
	if s.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// Clone returns a deep copy so callers can mutate without aliasing a cached
// snapshot.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	c := *s
	c.Schedules = slices.Clone(s.Schedules)
	c.CompletedToday = slices.Clone(s.CompletedToday)
	if s.Streak.LastCheckIn != nil {
		t := *s.Streak.LastCheckIn
		c.Streak.LastCheckIn = &t
	}
	if s.NextExpected != nil {
		t := *s.NextExpected
		c.NextExpected = &t
	}
	if s.LastLocation != nil {
		l := *s.LastLocation
		c.LastLocation = &l
	}
	return &c
}
