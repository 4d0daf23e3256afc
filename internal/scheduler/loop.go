package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
	"github.com/hray3182/lifeline-checkin/internal/status"
)

// watchLoop is the state of one Watch call. It is only touched by its own
// goroutine.
type watchLoop struct {
	w         *Watcher
	subjectID string
	state     *models.UserState

	lastStatus status.Status
	timer      Timer
	armedFor   time.Time
	firedFor   time.Time
}

func (l *watchLoop) run(ctx context.Context, updates <-chan *models.UserState) {
	ticker := time.NewTicker(l.w.checkInterval)
	defer ticker.Stop()
	defer l.disarm()

	l.onSnapshot(ctx)

	for {
		var deadline <-chan time.Time
		if l.timer != nil {
			deadline = l.timer.C()
		}

		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			l.state = st
			l.onSnapshot(ctx)
		case <-deadline:
			l.timer = nil
			l.onDeadline(ctx)
		case <-ticker.C:
			l.recheck(ctx)
		case <-l.w.notifyCh:
			l.w.logger.Debug("watcher triggered by notification", zap.String("subject_id", l.subjectID))
			l.reload(ctx)
		}
	}
}

func (l *watchLoop) derive(st *models.UserState, at time.Time) status.View {
	return status.Derive(status.InputFor(st, at, l.w.loc))
}

// onSnapshot recomputes the whole view from the latest snapshot and fires on
// transitions into RunningLate or SOS.
func (l *watchLoop) onSnapshot(ctx context.Context) {
	if l.state == nil {
		return
	}
	now := l.w.now()
	view := l.derive(l.state, now)
	l.w.publish(l.subjectID, view)

	prev := l.lastStatus
	l.lastStatus = view.Status
	if view.Status != prev {
		switch view.Status {
		case status.SOSActive:
			l.fireSOS(ctx)
		case status.RunningLate:
			l.fireMissed(ctx, len(view.Overdue), false)
		}
	}
	l.arm(view.NextExpected, now)
}

// recheck re-derives without a new snapshot, catching day rollovers and
// arming a timer when none is pending.
func (l *watchLoop) recheck(ctx context.Context) {
	if l.state == nil {
		st, err := l.w.reader.UserState(ctx, l.subjectID)
		if err != nil {
			if !errors.Is(err, persistence.ErrNotFound) {
				l.w.logger.Warn("recheck read failed", zap.String("subject_id", l.subjectID), zap.Error(err))
			}
			return
		}
		l.state = st
	}
	now := l.w.now()
	view := l.derive(l.state, now)
	l.w.publish(l.subjectID, view)
	l.lastStatus = view.Status
	if l.timer == nil {
		l.arm(view.NextExpected, now)
	}
}

// reload replaces the cached snapshot with a fresh read. A failed read falls
// back to a recheck of the cached state.
func (l *watchLoop) reload(ctx context.Context) {
	st, err := l.w.reader.UserState(ctx, l.subjectID)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			l.w.logger.Warn("reload read failed", zap.String("subject_id", l.subjectID), zap.Error(err))
		}
		l.recheck(ctx)
		return
	}
	l.state = st
	l.onSnapshot(ctx)
}

// onDeadline re-reads the subject and only acts if the armed instant is
// still what the latest state expects.
func (l *watchLoop) onDeadline(ctx context.Context) {
	armed := l.armedFor
	l.armedFor = time.Time{}

	fresh, err := l.w.reader.UserState(ctx, l.subjectID)
	if err != nil {
		l.w.logger.Warn("deadline read failed, using cached state", zap.String("subject_id", l.subjectID), zap.Error(err))
		fresh = l.state
	}
	if fresh == nil {
		return
	}
	l.state = fresh

	now := l.w.now()
	if !l.stillExpected(fresh, armed) {
		l.w.logger.Debug("deadline no longer current", zap.String("subject_id", l.subjectID), zap.Time("armed_for", armed))
		l.arm(l.derive(fresh, now).NextExpected, now)
		return
	}

	l.firedFor = armed
	view := l.derive(fresh, now)
	l.w.publish(l.subjectID, view)
	l.lastStatus = view.Status

	if missed := len(view.Overdue); missed > 0 {
		l.w.logger.Info("check-in deadline passed",
			zap.String("subject_id", l.subjectID),
			zap.Time("deadline", armed),
			zap.Int("overdue", missed),
		)
		if l.w.role == RoleSelf && l.w.missed != nil {
			if _, err := l.w.missed.RecordMissed(ctx, l.subjectID, missed); err != nil {
				l.w.logger.Warn("record missed failed", zap.String("subject_id", l.subjectID), zap.Error(err))
			}
		}
		l.fireMissed(ctx, missed, true)
	}
	l.arm(view.NextExpected, now)
}

// stillExpected reports whether, per st, armed is the next expected instant
// just before it passes.
func (l *watchLoop) stillExpected(st *models.UserState, armed time.Time) bool {
	if armed.IsZero() {
		return false
	}
	next := l.derive(st, armed.Add(-time.Nanosecond)).NextExpected
	return next != nil && next.Equal(armed)
}

// arm keeps exactly one timer pending, for next plus grace. Instants at or
// before the last fired deadline are never re-armed.
func (l *watchLoop) arm(next *time.Time, now time.Time) {
	if next != nil && !l.firedFor.IsZero() && !next.After(l.firedFor) {
		next = nil
	}
	if next == nil {
		l.disarm()
		return
	}
	if l.timer != nil && l.armedFor.Equal(*next) {
		return
	}

	l.disarm()
	delay := next.Add(l.w.grace).Sub(now)
	if delay < 0 {
		delay = 0
	}
	l.timer = l.w.newTimer(delay)
	l.armedFor = *next
	l.w.logger.Debug("deadline armed", zap.String("subject_id", l.subjectID), zap.Time("next_expected", *next), zap.Duration("in", delay))
}

func (l *watchLoop) disarm() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.armedFor = time.Time{}
}

func (l *watchLoop) fireMissed(ctx context.Context, count int, fromDeadline bool) {
	var vacation bool
	if l.state != nil {
		vacation = l.state.VacationMode
	}

	var err error
	switch l.w.role {
	case RoleFamily:
		_, err = l.w.alerter.FireFamilyMissedCheckIn(ctx, count, l.subjectID)
	default:
		_, err = l.w.alerter.FireSelfMissedCheckIn(ctx, count, vacation)
	}
	if err != nil {
		l.w.logger.Warn("missed check-in alert failed",
			zap.String("subject_id", l.subjectID), zap.Bool("deadline", fromDeadline), zap.Error(err))
	}
}

func (l *watchLoop) fireSOS(ctx context.Context) {
	if l.w.role != RoleFamily {
		return
	}
	if _, err := l.w.alerter.FireSOS(ctx, l.subjectID); err != nil {
		l.w.logger.Warn("sos alert failed", zap.String("subject_id", l.subjectID), zap.Error(err))
	}
}
