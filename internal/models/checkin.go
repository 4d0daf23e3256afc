package models

import (
	"slices"
	"time"
)

// Answers are the optional free-form tags a user attaches to a check-in.
type Answers struct {
	Mood       string `json:"mood,omitempty"`
	Sleep      string `json:"sleep,omitempty"`
	Energy     string `json:"energy,omitempty"`
	Medication string `json:"medication,omitempty"`
}

// IsEmpty reports whether no answer was given.
func (a Answers) IsEmpty() bool {
	return a == Answers{}
}

// CheckInRecord is an append-only history entry. It is written once, in the
// same transaction that updates the user's state.
type CheckInRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	RecordedAt     time.Time `json:"recorded_at"` // assigned by the store
	Answers        Answers   `json:"answers"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Address        string    `json:"address,omitempty"`
	BrainExercise  bool      `json:"brain_exercise"`
	ScheduledFor   []string  `json:"scheduled_for"`
	ScheduledCount int       `json:"scheduled_count"`
}

// HasLocation reports whether both coordinates were supplied.
func (r *CheckInRecord) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Corrected returns an edited copy of the record. The original is never
// modified.
func (r CheckInRecord) Corrected(edit func(*CheckInRecord)) CheckInRecord {
	c := r
	c.ScheduledFor = slices.Clone(r.ScheduledFor)
	if r.Latitude != nil {
		v := *r.Latitude
		c.Latitude = &v
	}
	if r.Longitude != nil {
		v := *r.Longitude
		c.Longitude = &v
	}
	if edit != nil {
		edit(&c)
	}
	return c
}
