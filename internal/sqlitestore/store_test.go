package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

var created = time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "lifeline.db"), WithClock(func() time.Time { return created }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddScheduleEntryIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddScheduleEntry(ctx, "u1", "6:00 PM", "9:00 AM", "UTC", created))
	require.NoError(t, s.AddScheduleEntry(ctx, "u1", "6:00 PM", "9:00 AM", "UTC", created))

	st, err := s.UserState(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"9:00 AM", "6:00 PM"}, st.Schedules)
	assert.Equal(t, "UTC", st.Timezone)
	assert.True(t, st.CreatedAt.Equal(created))
}

func TestRemoveScheduleEntryStripsCompletion(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		st := models.NewUserState("u1", "9:00 AM", "UTC", created)
		st.Schedules = []string{"9:00 AM", "6:00 PM"}
		st.CompletedToday = []string{"9:00 AM"}
		st.ResetDate = "2026-03-02"
		return tx.SaveUserState(ctx, st)
	}))

	require.NoError(t, s.RemoveScheduleEntry(ctx, "u1", "9:00 AM"))

	st, err := s.UserState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"6:00 PM"}, st.Schedules)
	assert.Empty(t, st.CompletedToday)
}

func TestRemoveScheduleEntryUnknownUser(t *testing.T) {
	s := openStore(t)
	err := s.RemoveScheduleEntry(context.Background(), "ghost", "9:00 AM")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestUserStateNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.UserState(context.Background(), "ghost")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestCheckInsRangeAndRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	lat, lng := 25.03, 121.56

	records := []models.CheckInRecord{
		{ID: "a", UserID: "u1", Timestamp: created.Add(-24 * time.Hour), ScheduledFor: []string{"9:00 AM"}, ScheduledCount: 1},
		{ID: "b", UserID: "u1", Timestamp: created, Answers: models.Answers{Mood: "good"}, Latitude: &lat, Longitude: &lng, BrainExercise: true, ScheduledFor: []string{"9:00 AM"}, ScheduledCount: 2},
		{ID: "c", UserID: "u2", Timestamp: created},
	}
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		for i := range records {
			if err := tx.InsertCheckIn(ctx, &records[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := s.CheckIns(ctx, "u1", created.Add(-time.Hour), created.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "good", got[0].Answers.Mood)
	require.True(t, got[0].HasLocation())
	assert.InDelta(t, lat, *got[0].Latitude, 1e-9)
	assert.True(t, got[0].BrainExercise)
	assert.Equal(t, 2, got[0].ScheduledCount)
	assert.True(t, got[0].RecordedAt.Equal(created))

	all, err := s.CheckIns(ctx, "u1", created.Add(-48*time.Hour), created.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
}

func TestRunInTxRollsBackAndSkipsPublish(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.SaveUserState(ctx, models.NewUserState("u1", "9:00 AM", "UTC", created)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.UserState(ctx, "u1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	select {
	case st := <-ch:
		t.Fatalf("unexpected snapshot %+v", st)
	default:
	}
}

func TestCommittedChangesArePublished(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, s.AddScheduleEntry(ctx, "u1", "6:00 PM", "9:00 AM", "UTC", created))

	select {
	case st := <-ch:
		assert.ElementsMatch(t, []string{"9:00 AM", "6:00 PM"}, st.Schedules)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestHasCheckIn(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		ok, err := tx.HasCheckIn(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		if err := tx.InsertCheckIn(ctx, &models.CheckInRecord{ID: "a", UserID: "u1", Timestamp: created}); err != nil {
			return err
		}
		ok, err = tx.HasCheckIn(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))
}
