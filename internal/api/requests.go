package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/models"
)

var validate = validator.New()

var errBadRequest = errors.New("bad request")

type CheckInRequest struct {
	Timestamp     *time.Time     `json:"timestamp"`
	Answers       models.Answers `json:"answers"`
	Latitude      *float64       `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64       `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Address       string         `json:"address" validate:"max=200"`
	BrainExercise bool           `json:"brain_exercise"`
}

// check validates field ranges and that coordinates come in pairs.
func (r *CheckInRequest) check() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be given together", errBadRequest)
	}
	return nil
}

func (r CheckInRequest) input() checkin.Input {
	in := checkin.Input{
		Answers:       r.Answers,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		Address:       r.Address,
		BrainExercise: r.BrainExercise,
	}
	if r.Timestamp != nil {
		in.Timestamp = *r.Timestamp
	}
	return in
}

type ScheduleRequest struct {
	Time string `json:"time" validate:"required,max=16"`
}

type ToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type PushRequest struct {
	Class     string `json:"class" validate:"required,oneof=self_missed family_missed sos"`
	SubjectID string `json:"subject_id" validate:"required"`
}
