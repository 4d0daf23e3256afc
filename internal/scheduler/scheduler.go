// Package scheduler watches one subject's state and raises missed check-in
// and SOS alerts from three triggers: change-feed snapshots, a one-shot
// deadline timer, and a periodic recheck.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/notify"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
	"github.com/hray3182/lifeline-checkin/internal/status"
)

// Role says whose alerts this process raises.
type Role string

const (
	// RoleSelf runs on the senior's side: missed check-ins remind the senior.
	RoleSelf Role = "self"
	// RoleFamily runs on a family member's side: missed check-ins and SOS of
	// the watched subject alert the family.
	RoleFamily Role = "family"
)

// Alerter is the notification gate.
type Alerter interface {
	FireSelfMissedCheckIn(ctx context.Context, count int, vacation bool) (notify.Decision, error)
	FireFamilyMissedCheckIn(ctx context.Context, count int, subjectID string) (notify.Decision, error)
	FireSOS(ctx context.Context, subjectID string) (notify.Decision, error)
}

// MissedRecorder persists the missed count observed at a deadline.
type MissedRecorder interface {
	RecordMissed(ctx context.Context, userID string, count int) (*models.UserState, error)
}

// StateReader reads a fresh snapshot.
type StateReader interface {
	UserState(ctx context.Context, userID string) (*models.UserState, error)
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

func newRealTimer(d time.Duration) Timer {
	return realTimer{t: time.NewTimer(d)}
}

type Watcher struct {
	reader        StateReader
	feed          persistence.Feed
	alerter       Alerter
	missed        MissedRecorder
	role          Role
	loc           *time.Location
	now           func() time.Time
	newTimer      func(d time.Duration) Timer
	grace         time.Duration
	checkInterval time.Duration
	logger        *zap.Logger

	notifyCh chan struct{}

	// mu guards the watch lifecycle; viewMu guards the latest view so the
	// loop can publish while Watch waits for it to exit.
	mu      sync.Mutex
	subject string
	cancel  context.CancelFunc
	done    chan struct{}

	viewMu      sync.Mutex
	viewSubject string
	latest      *status.View
}

type Option func(*Watcher)

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// WithTimerFactory replaces time.NewTimer for the deadline timer.
func WithTimerFactory(f func(d time.Duration) Timer) Option {
	return func(w *Watcher) {
		if f != nil {
			w.newTimer = f
		}
	}
}

// WithGrace delays the deadline timer past the scheduled instant.
func WithGrace(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.grace = d
		}
	}
}

func WithCheckInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.checkInterval = d
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(w *Watcher) {
		if loc != nil {
			w.loc = loc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func New(reader StateReader, feed persistence.Feed, alerter Alerter, missed MissedRecorder, role Role, opts ...Option) *Watcher {
	w := &Watcher{
		reader:        reader,
		feed:          feed,
		alerter:       alerter,
		missed:        missed,
		role:          role,
		loc:           time.Local,
		now:           time.Now,
		newTimer:      newRealTimer,
		grace:         time.Minute,
		checkInterval: time.Minute,
		logger:        zap.NewNop(),
		notifyCh:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify makes the watch re-read its subject from the store and re-derive,
// for changes the feed may have missed. Non-blocking if a reload is already
// pending.
func (w *Watcher) Notify() {
	select {
	case w.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

// Watch starts observing subjectID, cancelling and replacing any previous
// watch first so no timer or subscription outlives its subject.
func (w *Watcher) Watch(ctx context.Context, subjectID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()

	watchCtx, cancel := context.WithCancel(ctx)
	updates, err := w.feed.Subscribe(watchCtx, subjectID)
	if err != nil {
		cancel()
		return err
	}

	initial, err := w.reader.UserState(watchCtx, subjectID)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		cancel()
		return err
	}

	done := make(chan struct{})
	w.subject = subjectID
	w.cancel = cancel
	w.done = done

	w.viewMu.Lock()
	w.viewSubject = subjectID
	w.latest = nil
	w.viewMu.Unlock()

	loop := &watchLoop{w: w, subjectID: subjectID, state: initial}
	go func() {
		defer close(done)
		loop.run(watchCtx, updates)
	}()

	w.logger.Info("watching subject", zap.String("subject_id", subjectID), zap.String("role", string(w.role)))
	return nil
}

// Stop ends the current watch and waits for its goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.logger.Info("stopped watching subject", zap.String("subject_id", w.subject))
	w.cancel = nil
	w.done = nil
	w.subject = ""
}

// Latest returns the most recent view of the watched subject.
func (w *Watcher) Latest() (status.View, bool) {
	w.viewMu.Lock()
	defer w.viewMu.Unlock()
	if w.latest == nil {
		return status.View{}, false
	}
	return *w.latest, true
}

func (w *Watcher) publish(subjectID string, view status.View) {
	w.viewMu.Lock()
	if w.viewSubject == subjectID {
		v := view
		w.latest = &v
	}
	w.viewMu.Unlock()
}
