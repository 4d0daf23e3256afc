package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_state (
		user_id TEXT PRIMARY KEY,
		schedules TEXT NOT NULL DEFAULT '[]',
		completed_today TEXT NOT NULL DEFAULT '[]',
		reset_date TEXT NOT NULL DEFAULT '',
		current_streak INTEGER NOT NULL DEFAULT 0,
		streak_start TEXT NOT NULL DEFAULT '',
		last_check_in TEXT,
		next_expected TEXT,
		missed_today INTEGER NOT NULL DEFAULT 0,
		vacation_mode INTEGER NOT NULL DEFAULT 0,
		sos_active INTEGER NOT NULL DEFAULT 0,
		timezone TEXT NOT NULL DEFAULT '',
		last_latitude REAL,
		last_longitude REAL,
		last_address TEXT NOT NULL DEFAULT '',
		location_updated_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS check_ins (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		checked_in_at TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		mood TEXT NOT NULL DEFAULT '',
		sleep TEXT NOT NULL DEFAULT '',
		energy TEXT NOT NULL DEFAULT '',
		medication TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		address TEXT NOT NULL DEFAULT '',
		brain_exercise INTEGER NOT NULL DEFAULT 0,
		scheduled_for TEXT NOT NULL DEFAULT '[]',
		scheduled_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_check_ins_user_time ON check_ins (user_id, checked_in_at)`,
}

const selectUserState = `
	SELECT user_id, schedules, completed_today, reset_date, current_streak, streak_start,
	       last_check_in, next_expected, missed_today, vacation_mode, sos_active, timezone,
	       last_latitude, last_longitude, last_address, location_updated_at, created_at, updated_at
	FROM user_state`

const selectCheckIn = `
	SELECT id, user_id, checked_in_at, recorded_at, mood, sleep, energy, medication,
	       latitude, longitude, address, brain_exercise, scheduled_for, scheduled_count
	FROM check_ins`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserState(row rowScanner) (*models.UserState, error) {
	var (
		st                        models.UserState
		schedules, completed      string
		lastCheckIn, nextExpected sql.NullString
		vacation, sos             int
		lat, lng                  sql.NullFloat64
		address                   string
		locationAt                sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(
		&st.UserID, &schedules, &completed, &st.ResetDate, &st.Streak.Current, &st.Streak.StartDate,
		&lastCheckIn, &nextExpected, &st.MissedToday, &vacation, &sos, &st.Timezone,
		&lat, &lng, &address, &locationAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}

	if st.Schedules, err = decodeList(schedules); err != nil {
		return nil, err
	}
	if st.CompletedToday, err = decodeList(completed); err != nil {
		return nil, err
	}
	st.Streak.LastCheckIn = parseNullTime(lastCheckIn)
	st.NextExpected = parseNullTime(nextExpected)
	st.VacationMode = vacation != 0
	st.SOSActive = sos != 0
	if lat.Valid && lng.Valid {
		st.LastLocation = &models.Location{Latitude: lat.Float64, Longitude: lng.Float64, Address: address}
		if t := parseNullTime(locationAt); t != nil {
			st.LastLocation.UpdatedAt = *t
		}
	}
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func scanCheckIn(row rowScanner) (*models.CheckInRecord, error) {
	var (
		r                     models.CheckInRecord
		checkedInAt, recorded string
		lat, lng              sql.NullFloat64
		brain                 int
		scheduledFor          string
	)
	err := row.Scan(
		&r.ID, &r.UserID, &checkedInAt, &recorded, &r.Answers.Mood, &r.Answers.Sleep, &r.Answers.Energy, &r.Answers.Medication,
		&lat, &lng, &r.Address, &brain, &scheduledFor, &r.ScheduledCount,
	)
	if err != nil {
		return nil, classify(err)
	}
	r.Timestamp = parseTime(checkedInAt)
	r.RecordedAt = parseTime(recorded)
	if lat.Valid {
		v := lat.Float64
		r.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		r.Longitude = &v
	}
	r.BrainExercise = brain != 0
	if r.ScheduledFor, err = decodeList(scheduledFor); err != nil {
		return nil, err
	}
	return &r, nil
}

// sqlTx implements persistence.Tx.
type sqlTx struct {
	tx    *sql.Tx
	store *Store
	saved []*models.UserState
}

func (t *sqlTx) UserState(ctx context.Context, userID string) (*models.UserState, error) {
	return scanUserState(t.tx.QueryRowContext(ctx, selectUserState+` WHERE user_id = ?`, userID))
}

func (t *sqlTx) HasCheckIn(ctx context.Context, id string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM check_ins WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(fmt.Errorf("check-in lookup: %w", err))
	}
	return true, nil
}

func (t *sqlTx) InsertCheckIn(ctx context.Context, r *models.CheckInRecord) error {
	scheduledFor, err := encodeList(r.ScheduledFor)
	if err != nil {
		return err
	}
	r.RecordedAt = t.store.now().UTC()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO check_ins (id, user_id, checked_in_at, recorded_at, mood, sleep, energy, medication,
		                       latitude, longitude, address, brain_exercise, scheduled_for, scheduled_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, formatTime(r.Timestamp), formatTime(r.RecordedAt),
		r.Answers.Mood, r.Answers.Sleep, r.Answers.Energy, r.Answers.Medication,
		nullFloat(r.Latitude), nullFloat(r.Longitude), r.Address, boolToInt(r.BrainExercise),
		scheduledFor, r.ScheduledCount,
	)
	if err != nil {
		return classify(fmt.Errorf("insert check-in: %w", err))
	}
	return nil
}

func (t *sqlTx) SaveUserState(ctx context.Context, st *models.UserState) error {
	schedules, err := encodeList(st.Schedules)
	if err != nil {
		return err
	}
	completed, err := encodeList(st.CompletedToday)
	if err != nil {
		return err
	}
	st.UpdatedAt = t.store.now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.UpdatedAt
	}

	var lat, lng sql.NullFloat64
	var address string
	var locationAt sql.NullString
	if st.LastLocation != nil {
		lat = sql.NullFloat64{Float64: st.LastLocation.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: st.LastLocation.Longitude, Valid: true}
		address = st.LastLocation.Address
		locationAt = nullTime(&st.LastLocation.UpdatedAt)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO user_state (user_id, schedules, completed_today, reset_date, current_streak, streak_start,
		                        last_check_in, next_expected, missed_today, vacation_mode, sos_active, timezone,
		                        last_latitude, last_longitude, last_address, location_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			schedules = excluded.schedules,
			completed_today = excluded.completed_today,
			reset_date = excluded.reset_date,
			current_streak = excluded.current_streak,
			streak_start = excluded.streak_start,
			last_check_in = excluded.last_check_in,
			next_expected = excluded.next_expected,
			missed_today = excluded.missed_today,
			vacation_mode = excluded.vacation_mode,
			sos_active = excluded.sos_active,
			timezone = excluded.timezone,
			last_latitude = excluded.last_latitude,
			last_longitude = excluded.last_longitude,
			last_address = excluded.last_address,
			location_updated_at = excluded.location_updated_at,
			updated_at = excluded.updated_at`,
		st.UserID, schedules, completed, st.ResetDate, st.Streak.Current, st.Streak.StartDate,
		nullTime(st.Streak.LastCheckIn), nullTime(st.NextExpected), st.MissedToday,
		boolToInt(st.VacationMode), boolToInt(st.SOSActive), st.Timezone,
		lat, lng, address, locationAt, formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return classify(fmt.Errorf("save user state: %w", err))
	}
	t.saved = append(t.saved, st.Clone())
	return nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	list := []string{}
	if s == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return list, nil
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

var _ persistence.Store = (*Store)(nil)
var _ persistence.Feed = (*Store)(nil)
