// Package checkin coordinates the transactional writes against a user's
// shared state: recording a check-in, mutating the schedule set, and the
// vacation, SOS and missed-deadline flags.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/logging"
	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
	"github.com/hray3182/lifeline-checkin/internal/status"
	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

// Service is safe for concurrent use. Every operation re-reads state inside
// its own transaction; nothing is cached between calls.
type Service struct {
	store   persistence.Store
	retrier Retrier
	now     func() time.Time
	newID   func() string
	loc     *time.Location
	logger  *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRetrier(r Retrier) Option {
	return func(s *Service) { s.retrier = r }
}

// WithLocation sets the timezone for users without a stored one.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewService(store persistence.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		retrier: NewRetrier(DefaultAttempts, DefaultBackoff),
		now:     time.Now,
		newID:   uuid.NewString,
		loc:     time.Local,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is what a caller supplies for one check-in. A zero Timestamp means
// now.
type Input struct {
	Timestamp     time.Time
	Answers       models.Answers
	Latitude      *float64
	Longitude     *float64
	Address       string
	BrainExercise bool
}

// Result describes a committed check-in.
type Result struct {
	Record       models.CheckInRecord
	StreakState  status.StreakState
	Streak       models.StreakCounter
	NextExpected *time.Time
	Satisfied    []string
	// Duplicate is set when the record had already been committed by an
	// earlier attempt whose acknowledgement was lost.
	Duplicate bool
	// Backfilled is set for a record stamped on an earlier day; it is kept
	// in history without touching today's state.
	Backfilled bool
}

// RecordCheckIn records one check-in and updates completion, streak and
// next-expected state in the same transaction.
func (s *Service) RecordCheckIn(ctx context.Context, userID string, in Input) (*Result, error) {
	logger := s.opLogger(ctx, "record_check_in", userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}

	// The id is fixed across retries so a commit whose reply was lost is
	// detected instead of applied twice.
	id := s.newID()

	var result *Result
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
			r, err := s.applyCheckIn(ctx, tx, userID, id, in)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		logger.Warn("check-in failed", zap.String("error_kind", ErrorKind(err)), zap.Error(err))
		return nil, err
	}

	logger.Info("check-in recorded",
		zap.String("record_id", id),
		zap.Strings("satisfied", result.Satisfied),
		zap.String("streak_state", string(result.StreakState)),
		zap.Int("streak", result.Streak.Current),
		zap.Bool("duplicate", result.Duplicate),
	)
	return result, nil
}

func (s *Service) applyCheckIn(ctx context.Context, tx persistence.Tx, userID, id string, in Input) (*Result, error) {
	seen, err := tx.HasCheckIn(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := tx.UserState(ctx, userID)
	created := errors.Is(err, persistence.ErrNotFound)
	if created {
		st, err = models.NewUserState(userID, timeofday.DefaultEntry, s.loc.String(), s.now()), nil
	}
	if err != nil {
		return nil, err
	}
	if seen {
		return &Result{Streak: st.Streak, NextExpected: st.NextExpected, Duplicate: true}, nil
	}

	loc := st.Location(s.loc)
	now := s.now().In(loc)
	at := in.Timestamp.In(loc)
	if status.CalendarDaysBetween(now, at) > 0 {
		return nil, fmt.Errorf("%w: timestamp %s is after today", ErrInvalidArgument, at.Format(time.RFC3339))
	}
	schedules := status.EffectiveSchedules(st.Schedules)

	record := models.CheckInRecord{
		ID:             id,
		UserID:         userID,
		Timestamp:      at,
		Answers:        in.Answers,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		Address:        in.Address,
		BrainExercise:  in.BrainExercise,
		ScheduledFor:   []string{},
		ScheduledCount: len(schedules),
	}

	// A record from an earlier day is history only. Today's completion set,
	// streak and next-expected instant stay as they are.
	if !status.IsSameLocalDay(at, now) {
		if err := tx.InsertCheckIn(ctx, &record); err != nil {
			return nil, err
		}
		if created {
			st.NextExpected = nextExpected(st, now)
			if err := tx.SaveUserState(ctx, st); err != nil {
				return nil, err
			}
		}
		return &Result{
			Record:       record,
			StreakState:  status.SameDay,
			Streak:       st.Streak,
			NextExpected: st.NextExpected,
			Satisfied:    []string{},
			Backfilled:   true,
		}, nil
	}

	completed := status.EffectiveCompleted(st.CompletedToday, st.ResetDate, now)
	counter, state := status.NextStreak(st.Streak, at)
	satisfied := status.ToResolve(schedules, completed, at)
	completed = timeofday.Union(completed, satisfied)
	if len(satisfied) > 0 {
		record.ScheduledFor = satisfied
	}

	st.CompletedToday = completed
	st.ResetDate = status.DateKey(now)
	st.Streak = counter
	st.MissedToday = 0
	st.NextExpected = nextExpected(st, now)
	if record.HasLocation() {
		st.LastLocation = &models.Location{
			Latitude:  *record.Latitude,
			Longitude: *record.Longitude,
			Address:   record.Address,
			UpdatedAt: at,
		}
	}

	if err := tx.InsertCheckIn(ctx, &record); err != nil {
		return nil, err
	}
	if err := tx.SaveUserState(ctx, st); err != nil {
		return nil, err
	}

	return &Result{
		Record:       record,
		StreakState:  state,
		Streak:       counter,
		NextExpected: st.NextExpected,
		Satisfied:    satisfied,
	}, nil
}

// Status derives the user's current view from a fresh snapshot.
func (s *Service) Status(ctx context.Context, userID string, now time.Time) (status.View, error) {
	if userID == "" {
		return status.View{}, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	var st *models.UserState
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.store.UserState(ctx, userID)
		return err
	})
	if err != nil {
		return status.View{}, mapNotFound(err)
	}
	return status.Derive(status.InputFor(st, now, s.loc)), nil
}

// State returns the raw stored snapshot.
func (s *Service) State(ctx context.Context, userID string) (*models.UserState, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	var st *models.UserState
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.store.UserState(ctx, userID)
		return err
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return st, nil
}

// Location resolves userID's timezone, falling back to the service default
// for unknown users.
func (s *Service) Location(ctx context.Context, userID string) *time.Location {
	st, err := s.State(ctx, userID)
	if err != nil {
		return s.loc
	}
	return st.Location(s.loc)
}

func (s *Service) loadOrNew(ctx context.Context, tx persistence.Tx, userID string) (*models.UserState, error) {
	st, err := tx.UserState(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return models.NewUserState(userID, timeofday.DefaultEntry, s.loc.String(), s.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) opLogger(ctx context.Context, operation, userID string) *zap.Logger {
	return logging.FromContext(ctx, s.logger).With(
		zap.String("service", "checkin"),
		zap.String("operation", operation),
		zap.String("user_id", userID),
	)
}

// nextExpected is the stored next-expected instant; vacation suppresses it.
func nextExpected(st *models.UserState, now time.Time) *time.Time {
	if st.VacationMode {
		return nil
	}
	return status.NextExpected(
		status.EffectiveSchedules(st.Schedules),
		now,
		st.Streak.LastCheckIn,
		status.EffectiveCompleted(st.CompletedToday, st.ResetDate, now),
	)
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
