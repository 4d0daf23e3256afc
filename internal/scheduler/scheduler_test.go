package scheduler

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/feed"
	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/notify"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
	"github.com/hray3182/lifeline-checkin/internal/sqlitestore"
	"github.com/hray3182/lifeline-checkin/internal/status"
	"github.com/hray3182/lifeline-checkin/internal/testfixtures"
)

type alertCall struct {
	class   notify.Class
	count   int
	subject string
}

type fakeAlerter struct {
	calls chan alertCall
}

func newFakeAlerter() *fakeAlerter {
	return &fakeAlerter{calls: make(chan alertCall, 16)}
}

func (f *fakeAlerter) FireSelfMissedCheckIn(_ context.Context, count int, vacation bool) (notify.Decision, error) {
	if vacation {
		return notify.Decision{Reason: notify.SkipVacation}, nil
	}
	f.calls <- alertCall{class: notify.ClassSelfMissed, count: count}
	return notify.Decision{Fired: true}, nil
}

func (f *fakeAlerter) FireFamilyMissedCheckIn(_ context.Context, count int, subjectID string) (notify.Decision, error) {
	f.calls <- alertCall{class: notify.ClassFamilyMissed, count: count, subject: subjectID}
	return notify.Decision{Fired: true}, nil
}

func (f *fakeAlerter) FireSOS(_ context.Context, subjectID string) (notify.Decision, error) {
	f.calls <- alertCall{class: notify.ClassSOS, count: 1, subject: subjectID}
	return notify.Decision{Fired: true}, nil
}

func (f *fakeAlerter) next(t *testing.T) alertCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no alert raised")
		return alertCall{}
	}
}

func (f *fakeAlerter) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected alert %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

type harness struct {
	clock   *testfixtures.Clock
	timers  *testfixtures.ManualTimers
	store   *sqlitestore.Store
	svc     *checkin.Service
	alerter *fakeAlerter
	watcher *Watcher
}

func newHarness(t *testing.T, role Role) *harness {
	t.Helper()
	clock := testfixtures.NewClock(testfixtures.At(2, 8, 0))
	timers := testfixtures.NewManualTimers(clock)
	store := testfixtures.NewSQLiteStore(t, clock)
	svc := checkin.NewService(store,
		checkin.WithClock(clock.NowFunc()),
		checkin.WithLocation(testfixtures.Taipei),
		checkin.WithRetrier(checkin.NewRetrier(1, 0)),
	)
	alerter := newFakeAlerter()
	w := New(store, store, alerter, svc, role,
		WithClock(clock.NowFunc()),
		WithTimerFactory(func(d time.Duration) Timer { return timers.NewTimer(d) }),
		WithLocation(testfixtures.Taipei),
		WithCheckInterval(time.Hour),
	)
	t.Cleanup(w.Stop)
	return &harness{clock: clock, timers: timers, store: store, svc: svc, alerter: alerter, watcher: w}
}

func (h *harness) seed(t *testing.T, userID string, schedules ...string) {
	t.Helper()
	st := &models.UserState{
		UserID:    userID,
		Schedules: schedules,
		Timezone:  "Asia/Taipei",
		CreatedAt: testfixtures.At(1, 0, 0).AddDate(0, -1, 0),
	}
	require.NoError(t, h.store.RunInTx(context.Background(), func(ctx context.Context, tx persistence.Tx) error {
		return tx.SaveUserState(ctx, st)
	}))
}

func (h *harness) armed(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-h.timers.Armed():
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no deadline armed")
		return 0
	}
}

func TestDeadlineRaisesFamilyAlert(t *testing.T) {
	h := newHarness(t, RoleFamily)
	h.seed(t, "grandma", "9:00 AM")

	require.NoError(t, h.watcher.Watch(context.Background(), "grandma"))
	assert.Equal(t, 61*time.Minute, h.armed(t))

	h.timers.Advance(61 * time.Minute)
	call := h.alerter.next(t)
	assert.Equal(t, notify.ClassFamilyMissed, call.class)
	assert.Equal(t, "grandma", call.subject)
	assert.Equal(t, 1, call.count)

	view, ok := h.watcher.Latest()
	require.True(t, ok)
	assert.Equal(t, status.RunningLate, view.Status)
}

func TestDeadlineInSelfRoleRecordsMissed(t *testing.T) {
	h := newHarness(t, RoleSelf)
	h.seed(t, "me", "9:00 AM")

	require.NoError(t, h.watcher.Watch(context.Background(), "me"))
	h.armed(t)
	h.timers.Advance(61 * time.Minute)

	call := h.alerter.next(t)
	assert.Equal(t, notify.ClassSelfMissed, call.class)
	assert.Equal(t, 1, call.count)

	require.Eventually(t, func() bool {
		st, err := h.store.UserState(context.Background(), "me")
		return err == nil && st.MissedToday == 1
	}, 2*time.Second, 10*time.Millisecond)
	h.alerter.none(t)
}

func TestCheckInBeforeDeadlineRearms(t *testing.T) {
	h := newHarness(t, RoleFamily)
	h.seed(t, "grandma", "9:00 AM")

	require.NoError(t, h.watcher.Watch(context.Background(), "grandma"))
	h.armed(t)

	h.timers.Advance(30 * time.Minute)
	_, err := h.svc.RecordCheckIn(context.Background(), "grandma", checkin.Input{})
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour+31*time.Minute, h.armed(t))
	h.timers.Advance(40 * time.Minute)
	h.alerter.none(t)
	assert.Equal(t, 1, h.timers.Active())
}

func TestScheduleEditMovesDeadline(t *testing.T) {
	h := newHarness(t, RoleFamily)
	h.seed(t, "grandma", "9:00 AM")

	require.NoError(t, h.watcher.Watch(context.Background(), "grandma"))
	h.armed(t)

	_, err := h.svc.AddSchedule(context.Background(), "grandma", "8:30 AM")
	require.NoError(t, err)
	assert.Equal(t, 31*time.Minute, h.armed(t))
	assert.Equal(t, 1, h.timers.Active())

	h.timers.Advance(31 * time.Minute)
	call := h.alerter.next(t)
	assert.Equal(t, 1, call.count)
}

func TestSOSRaisesFamilyAlert(t *testing.T) {
	h := newHarness(t, RoleFamily)
	h.seed(t, "grandma", "9:00 AM")

	require.NoError(t, h.watcher.Watch(context.Background(), "grandma"))
	h.armed(t)

	_, err := h.svc.SetSOS(context.Background(), "grandma", true)
	require.NoError(t, err)
	call := h.alerter.next(t)
	assert.Equal(t, notify.ClassSOS, call.class)
}

func TestWatchReplacesPreviousSubject(t *testing.T) {
	h := newHarness(t, RoleFamily)
	h.seed(t, "grandma", "9:00 AM")
	h.seed(t, "grandpa", "10:00 AM")

	require.NoError(t, h.watcher.Watch(context.Background(), "grandma"))
	h.armed(t)
	require.NoError(t, h.watcher.Watch(context.Background(), "grandpa"))
	assert.Equal(t, 121*time.Minute, h.armed(t))
	assert.Equal(t, 1, h.timers.Active())

	h.timers.Advance(61 * time.Minute)
	h.alerter.none(t)

	h.timers.Advance(time.Hour)
	call := h.alerter.next(t)
	assert.Equal(t, "grandpa", call.subject)
}

func TestStillExpected(t *testing.T) {
	w := New(nil, nil, nil, nil, RoleFamily, WithLocation(testfixtures.Taipei))
	l := &watchLoop{w: w, subjectID: "u1"}
	nine := testfixtures.At(2, 9, 0)

	st := &models.UserState{UserID: "u1", Schedules: []string{"9:00 AM", "6:00 PM"}, Timezone: "Asia/Taipei"}
	assert.True(t, l.stillExpected(st, nine))
	assert.False(t, l.stillExpected(st, testfixtures.At(2, 8, 0)))

	checkedIn := testfixtures.At(2, 8, 55)
	done := st.Clone()
	done.CompletedToday = []string{"9:00 AM"}
	done.ResetDate = "2026-03-02"
	done.Streak.LastCheckIn = &checkedIn
	assert.False(t, l.stillExpected(done, nine))

	away := st.Clone()
	away.VacationMode = true
	assert.False(t, l.stillExpected(away, nine))
}

func TestNotifyReloadsChangesTheFeedMissed(t *testing.T) {
	h := newHarness(t, RoleFamily)
	h.seed(t, "grandma", "9:00 AM")

	// The watcher listens on a hub nobody publishes to.
	w := New(h.store, feed.NewHub(), h.alerter, h.svc, RoleFamily,
		WithClock(h.clock.NowFunc()),
		WithTimerFactory(func(d time.Duration) Timer { return h.timers.NewTimer(d) }),
		WithLocation(testfixtures.Taipei),
		WithCheckInterval(time.Hour),
	)
	t.Cleanup(w.Stop)
	require.NoError(t, w.Watch(context.Background(), "grandma"))
	assert.Equal(t, 61*time.Minute, h.armed(t))

	_, err := h.svc.SetSOS(context.Background(), "grandma", true)
	require.NoError(t, err)
	h.alerter.none(t)

	w.Notify()
	call := h.alerter.next(t)
	assert.Equal(t, notify.ClassSOS, call.class)
	assert.Equal(t, "grandma", call.subject)

	view, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, status.SOSActive, view.Status)
}
