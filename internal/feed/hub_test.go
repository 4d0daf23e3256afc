package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hray3182/lifeline-checkin/internal/models"
)

func TestHubDeliversLatestSnapshot(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, "u1")
	require.NoError(t, err)

	hub.Publish(&models.UserState{UserID: "u1", MissedToday: 1})
	hub.Publish(&models.UserState{UserID: "u1", MissedToday: 2})
	hub.Publish(&models.UserState{UserID: "u2", MissedToday: 9})

	select {
	case got := <-ch:
		assert.Equal(t, 2, got.MissedToday)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestHubClosesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("u1"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, hub.Subscribers("u1"))

	// publishing after unsubscribe must not panic
	hub.Publish(&models.UserState{UserID: "u1"})
}

func TestHubSnapshotsAreIsolated(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := hub.Subscribe(ctx, "u1")
	b, _ := hub.Subscribe(ctx, "u1")

	hub.Publish(&models.UserState{UserID: "u1", Schedules: []string{"9:00 AM"}})
	gotA := <-a
	gotB := <-b
	gotA.Schedules[0] = "changed"
	assert.Equal(t, "9:00 AM", gotB.Schedules[0])
}
