package checkin

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
	"github.com/hray3182/lifeline-checkin/internal/status"
	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

// AddSchedule unions entry into the user's schedule set, then refreshes the
// completion set and next-expected instant. The returned state is the one
// written by the refresh.
func (s *Service) AddSchedule(ctx context.Context, userID, entry string) (*models.UserState, error) {
	logger := s.opLogger(ctx, "add_schedule", userID)
	normalized, err := validateEntry(userID, entry)
	if err != nil {
		return nil, err
	}

	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.store.AddScheduleEntry(ctx, userID, normalized, timeofday.DefaultEntry, s.loc.String(), s.now())
	})
	if err != nil {
		logger.Warn("add schedule failed", zap.String("error_kind", ErrorKind(err)), zap.Error(err))
		return nil, err
	}

	st, err := s.refresh(ctx, userID)
	if err != nil {
		logger.Warn("schedule refresh failed", zap.String("error_kind", ErrorKind(err)), zap.Error(err))
		return nil, err
	}
	logger.Info("schedule added", zap.String("entry", normalized), zap.Strings("schedules", st.Schedules))
	return st, nil
}

// RemoveSchedule removes entry from the schedule set and from today's
// completions, so re-adding it later starts unsatisfied. Unparsable entries
// already stored can be removed too.
func (s *Service) RemoveSchedule(ctx context.Context, userID, entry string) (*models.UserState, error) {
	logger := s.opLogger(ctx, "remove_schedule", userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	normalized := timeofday.Normalize(entry)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty schedule entry", ErrInvalidArgument)
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		targets, err := s.removalTargets(ctx, userID, normalized)
		if err != nil {
			return err
		}
		for _, target := range targets {
			if err := s.store.RemoveScheduleEntry(ctx, userID, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = mapNotFound(err)
		logger.Warn("remove schedule failed", zap.String("error_kind", ErrorKind(err)), zap.Error(err))
		return nil, err
	}

	st, err := s.refresh(ctx, userID)
	if err != nil {
		logger.Warn("schedule refresh failed", zap.String("error_kind", ErrorKind(err)), zap.Error(err))
		return nil, err
	}
	logger.Info("schedule removed", zap.String("entry", normalized), zap.Strings("schedules", st.Schedules))
	return st, nil
}

// refresh clears a stale completion set and rewrites next-expected from the
// post-mutation snapshot.
func (s *Service) refresh(ctx context.Context, userID string) (*models.UserState, error) {
	return s.update(ctx, userID, false, func(st *models.UserState, now time.Time) error {
		if st.ResetDate != status.DateKey(now) {
			st.CompletedToday = []string{}
			st.ResetDate = status.DateKey(now)
		}
		return nil
	})
}

// SetVacationMode toggles vacation. While on, the user is always Safe and has
// no next-expected instant.
func (s *Service) SetVacationMode(ctx context.Context, userID string, on bool) (*models.UserState, error) {
	st, err := s.update(ctx, userID, true, func(st *models.UserState, _ time.Time) error {
		st.VacationMode = on
		return nil
	})
	if err == nil {
		s.opLogger(ctx, "set_vacation", userID).Info("vacation mode changed", zap.Bool("vacation", on))
	}
	return st, err
}

// SetSOS raises or clears the SOS flag.
func (s *Service) SetSOS(ctx context.Context, userID string, active bool) (*models.UserState, error) {
	st, err := s.update(ctx, userID, true, func(st *models.UserState, _ time.Time) error {
		st.SOSActive = active
		return nil
	})
	if err == nil {
		s.opLogger(ctx, "set_sos", userID).Info("sos changed", zap.Bool("sos", active))
	}
	return st, err
}

// RecordMissed stores how many schedules were overdue when a deadline
// passed. The count only grows within a day; a check-in resets it.
func (s *Service) RecordMissed(ctx context.Context, userID string, count int) (*models.UserState, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative missed count", ErrInvalidArgument)
	}
	return s.update(ctx, userID, false, func(st *models.UserState, _ time.Time) error {
		if count > st.MissedToday {
			st.MissedToday = count
		}
		return nil
	})
}

// update runs a read-modify-write of the user's state document in one
// transaction and recomputes next-expected. create allows a first write for
// an unknown user.
func (s *Service) update(ctx context.Context, userID string, create bool, apply func(st *models.UserState, now time.Time) error) (*models.UserState, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}

	var saved *models.UserState
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
			var st *models.UserState
			var err error
			if create {
				st, err = s.loadOrNew(ctx, tx, userID)
			} else {
				st, err = tx.UserState(ctx, userID)
			}
			if err != nil {
				return err
			}

			now := s.now().In(st.Location(s.loc))
			if err := apply(st, now); err != nil {
				return err
			}
			st.NextExpected = nextExpected(st, now)
			if err := tx.SaveUserState(ctx, st); err != nil {
				return err
			}
			saved = st
			return nil
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return saved, nil
}

// removalTargets lists the stored spellings of normalized. Entries written
// before normalization may differ from their key only in case or spacing.
func (s *Service) removalTargets(ctx context.Context, userID, normalized string) ([]string, error) {
	st, err := s.store.UserState(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets := []string{normalized}
	for _, stored := range append(append([]string{}, st.Schedules...), st.CompletedToday...) {
		if stored != normalized && timeofday.Normalize(stored) == normalized && !slices.Contains(targets, stored) {
			targets = append(targets, stored)
		}
	}
	return targets, nil
}

// validateEntry rejects new input that does not parse. Unparsable entries
// that are already stored stay visible and are skipped by the arithmetic.
func validateEntry(userID, entry string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	tod, err := timeofday.Parse(entry)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return tod.String(), nil
}
