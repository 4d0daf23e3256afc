package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

const selectUserState = `
	SELECT user_id, schedules, completed_today, reset_date, current_streak, streak_start,
	       last_check_in, next_expected, missed_today, vacation_mode, sos_active, timezone,
	       last_latitude, last_longitude, last_address, location_updated_at, created_at, updated_at
	FROM user_state`

const selectCheckIn = `
	SELECT id, user_id, checked_in_at, recorded_at, mood, sleep, energy, medication,
	       latitude, longitude, address, brain_exercise, scheduled_for, scheduled_count
	FROM check_ins`

// pgTx implements persistence.Tx. Reads lock the row so a concurrent writer
// either waits or fails serialization.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) UserState(ctx context.Context, userID string) (*models.UserState, error) {
	return scanUserState(t.tx.QueryRow(ctx, selectUserState+` WHERE user_id = $1 FOR UPDATE`, userID))
}

func (t *pgTx) HasCheckIn(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM check_ins WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, classify(fmt.Errorf("check-in lookup: %w", err))
	}
	return exists, nil
}

func (t *pgTx) InsertCheckIn(ctx context.Context, r *models.CheckInRecord) error {
	scheduledFor := r.ScheduledFor
	if scheduledFor == nil {
		scheduledFor = []string{}
	}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO check_ins (id, user_id, checked_in_at, mood, sleep, energy, medication,
		                        latitude, longitude, address, brain_exercise, scheduled_for, scheduled_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING recorded_at`,
		r.ID, r.UserID, r.Timestamp, r.Answers.Mood, r.Answers.Sleep, r.Answers.Energy, r.Answers.Medication,
		r.Latitude, r.Longitude, r.Address, r.BrainExercise, scheduledFor, r.ScheduledCount,
	).Scan(&r.RecordedAt)
	if err != nil {
		return classify(fmt.Errorf("insert check-in: %w", err))
	}
	return nil
}

func (t *pgTx) SaveUserState(ctx context.Context, st *models.UserState) error {
	schedules := st.Schedules
	if schedules == nil {
		schedules = []string{}
	}
	completed := st.CompletedToday
	if completed == nil {
		completed = []string{}
	}

	var lat, lng *float64
	var address string
	var locationAt any
	if st.LastLocation != nil {
		lat, lng = &st.LastLocation.Latitude, &st.LastLocation.Longitude
		address = st.LastLocation.Address
		locationAt = st.LastLocation.UpdatedAt
	}

	err := t.tx.QueryRow(ctx,
		`INSERT INTO user_state (user_id, schedules, completed_today, reset_date, current_streak, streak_start,
		                         last_check_in, next_expected, missed_today, vacation_mode, sos_active, timezone,
		                         last_latitude, last_longitude, last_address, location_updated_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, COALESCE($17, now()), now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     schedules = EXCLUDED.schedules,
		     completed_today = EXCLUDED.completed_today,
		     reset_date = EXCLUDED.reset_date,
		     current_streak = EXCLUDED.current_streak,
		     streak_start = EXCLUDED.streak_start,
		     last_check_in = EXCLUDED.last_check_in,
		     next_expected = EXCLUDED.next_expected,
		     missed_today = EXCLUDED.missed_today,
		     vacation_mode = EXCLUDED.vacation_mode,
		     sos_active = EXCLUDED.sos_active,
		     timezone = EXCLUDED.timezone,
		     last_latitude = EXCLUDED.last_latitude,
		     last_longitude = EXCLUDED.last_longitude,
		     last_address = EXCLUDED.last_address,
		     location_updated_at = EXCLUDED.location_updated_at,
		     updated_at = now()
		 RETURNING created_at, updated_at`,
		st.UserID, schedules, completed, st.ResetDate, st.Streak.Current, st.Streak.StartDate,
		st.Streak.LastCheckIn, st.NextExpected, st.MissedToday, st.VacationMode, st.SOSActive, st.Timezone,
		lat, lng, address, locationAt, nullableTime(st.CreatedAt),
	).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("save user state: %w", err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserState(row rowScanner) (*models.UserState, error) {
	var (
		st         models.UserState
		lat, lng   *float64
		address    string
		locationAt *time.Time
	)
	err := row.Scan(
		&st.UserID, &st.Schedules, &st.CompletedToday, &st.ResetDate, &st.Streak.Current, &st.Streak.StartDate,
		&st.Streak.LastCheckIn, &st.NextExpected, &st.MissedToday, &st.VacationMode, &st.SOSActive, &st.Timezone,
		&lat, &lng, &address, &locationAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("scan user state: %w", err))
	}
	if lat != nil && lng != nil {
		st.LastLocation = &models.Location{Latitude: *lat, Longitude: *lng, Address: address}
		if locationAt != nil {
			st.LastLocation.UpdatedAt = *locationAt
		}
	}
	return &st, nil
}

func scanCheckIn(row rowScanner) (*models.CheckInRecord, error) {
	var r models.CheckInRecord
	err := row.Scan(
		&r.ID, &r.UserID, &r.Timestamp, &r.RecordedAt, &r.Answers.Mood, &r.Answers.Sleep, &r.Answers.Energy, &r.Answers.Medication,
		&r.Latitude, &r.Longitude, &r.Address, &r.BrainExercise, &r.ScheduledFor, &r.ScheduledCount,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("scan check-in: %w", err))
	}
	return &r, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
