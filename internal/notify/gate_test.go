package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hray3182/lifeline-checkin/internal/testfixtures"
)

type recordingDeliverer struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (d *recordingDeliverer) Deliver(_ context.Context, a Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.alerts = append(d.alerts, a)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

func openLedger(t *testing.T, dir string) *SQLiteLedger {
	t.Helper()
	l, err := OpenSQLiteLedger(context.Background(), filepath.Join(dir, "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newGate(t *testing.T, clock *testfixtures.Clock, d Deliverer) *Gate {
	t.Helper()
	g := NewGate(openLedger(t, t.TempDir()), d, "senior", WithClock(clock.NowFunc()))
	require.NoError(t, g.Init(context.Background()))
	return g
}

func TestSelfMissedArgumentChecks(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{}
	g := newGate(t, clock, d)
	ctx := context.Background()

	dec, err := g.FireSelfMissedCheckIn(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, SkipNoMissed, dec.Reason)

	dec, err = g.FireSelfMissedCheckIn(ctx, 2, true)
	require.NoError(t, err)
	assert.Equal(t, SkipVacation, dec.Reason)

	_, err = g.FireFamilyMissedCheckIn(ctx, 1, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = g.FireSOS(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, d.count())
}

func TestUninitializedGateSkips(t *testing.T) {
	d := &recordingDeliverer{}
	g := NewGate(openLedger(t, t.TempDir()), d, "senior")

	dec, err := g.FireSOS(context.Background(), "senior")
	require.NoError(t, err)
	assert.Equal(t, SkipNotInitialized, dec.Reason)
	assert.Zero(t, d.count())
}

func TestCooldownWindow(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{}
	g := newGate(t, clock, d)
	ctx := context.Background()

	dec, err := g.FireSelfMissedCheckIn(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, dec.Fired)

	clock.Advance(29 * time.Second)
	dec, err = g.FireSelfMissedCheckIn(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, SkipCooldown, dec.Reason)

	clock.Advance(time.Second)
	dec, err = g.FireSelfMissedCheckIn(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, dec.Fired)
	assert.Equal(t, 2, d.count())
}

func TestFamilyCooldownIsPerSubject(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{}
	g := newGate(t, clock, d)
	ctx := context.Background()

	for _, subject := range []string{"grandma", "grandpa", "grandma"} {
		_, err := g.FireFamilyMissedCheckIn(ctx, 1, subject)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, d.count())
}

func TestSOSBypassesVacationAndUsesLongCooldown(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{}
	g := newGate(t, clock, d)
	ctx := context.Background()

	dec, err := g.FireSOS(ctx, "senior")
	require.NoError(t, err)
	require.True(t, dec.Fired)
	assert.Equal(t, PriorityCritical, d.alerts[0].Priority)

	clock.Advance(4 * time.Minute)
	dec, err = g.FireSOS(ctx, "senior")
	require.NoError(t, err)
	assert.Equal(t, SkipCooldown, dec.Reason)

	clock.Advance(time.Minute)
	dec, err = g.FireSOS(ctx, "senior")
	require.NoError(t, err)
	assert.True(t, dec.Fired)
}

func TestExternalPushSuppressesLocalFire(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{}
	g := newGate(t, clock, d)
	ctx := context.Background()

	require.NoError(t, g.NoteExternalPush(ctx, ClassFamilyMissed, "grandma"))
	clock.Advance(3 * time.Second)
	dec, err := g.FireFamilyMissedCheckIn(ctx, 1, "grandma")
	require.NoError(t, err)
	assert.Equal(t, SkipPushedRecently, dec.Reason)

	clock.Advance(2 * time.Second)
	dec, err = g.FireFamilyMissedCheckIn(ctx, 1, "grandma")
	require.NoError(t, err)
	assert.True(t, dec.Fired)
}

func TestDeliveryFailureReleasesReservation(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{err: errors.New("offline")}
	g := newGate(t, clock, d)
	ctx := context.Background()

	_, err := g.FireSelfMissedCheckIn(ctx, 1, false)
	require.Error(t, err)

	d.err = nil
	dec, err := g.FireSelfMissedCheckIn(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, dec.Fired)
}

func TestCooldownSurvivesRestart(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	dir := t.TempDir()
	ctx := context.Background()

	first := NewGate(openLedger(t, dir), &recordingDeliverer{}, "senior", WithClock(clock.NowFunc()))
	require.NoError(t, first.Init(ctx))
	dec, err := first.FireSOS(ctx, "senior")
	require.NoError(t, err)
	require.True(t, dec.Fired)
	require.NoError(t, first.NoteExternalPush(ctx, ClassSelfMissed, "senior"))

	clock.Advance(time.Second)
	d := &recordingDeliverer{}
	second := NewGate(openLedger(t, dir), d, "senior", WithClock(clock.NowFunc()))
	require.NoError(t, second.Init(ctx))

	dec, err = second.FireSOS(ctx, "senior")
	require.NoError(t, err)
	assert.Equal(t, SkipCooldown, dec.Reason)
	dec, err = second.FireSelfMissedCheckIn(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, SkipPushedRecently, dec.Reason)
	assert.Zero(t, d.count())
}

func TestConcurrentTriggersFireOnce(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	d := &recordingDeliverer{}
	g := newGate(t, clock, d)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.FireFamilyMissedCheckIn(context.Background(), 1, "grandma")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, d.count())
}

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegramDeliverer(t *testing.T) {
	sender := &fakeSender{}
	d := NewTelegramDeliverer(sender, 42)

	require.NoError(t, d.Deliver(context.Background(), Alert{Class: ClassSOS, SubjectID: "grandma", Priority: PriorityCritical}))
	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "grandma")
	assert.NotNil(t, msg.ReplyMarkup)
}
