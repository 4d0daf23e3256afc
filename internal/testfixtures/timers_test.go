package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()))
	assert.True(t, clock.Advance(time.Hour).Equal(At(2, 9, 0)))
}

func TestManualTimersFireOnlyWhenDue(t *testing.T) {
	clock := NewClock(time.Time{})
	timers := NewManualTimers(clock)

	early := timers.NewTimer(time.Minute)
	late := timers.NewTimer(time.Hour)
	assert.Equal(t, 2, timers.Active())

	timers.Advance(time.Minute)
	select {
	case <-early.C():
	default:
		t.Fatal("early timer did not fire")
	}
	select {
	case <-late.C():
		t.Fatal("late timer fired early")
	default:
	}

	assert.True(t, late.Stop())
	assert.False(t, late.Stop())
	timers.Advance(2 * time.Hour)
	assert.Equal(t, 0, timers.Active())
	assert.Len(t, late.C(), 0)
}
