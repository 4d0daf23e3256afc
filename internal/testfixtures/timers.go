package testfixtures

import (
	"sync"
	"time"
)

// ManualTimers hands out timers that only fire when the owning clock is
// advanced through them.
type ManualTimers struct {
	mu     sync.Mutex
	clock  *Clock
	timers []*ManualTimer
	armed  chan time.Duration
}

func NewManualTimers(clock *Clock) *ManualTimers {
	return &ManualTimers{clock: clock, armed: make(chan time.Duration, 64)}
}

// ManualTimer is a one-shot timer driven by ManualTimers.Advance.
type ManualTimer struct {
	c      chan time.Time
	at     time.Time
	active bool
	owner  *ManualTimers
}

// NewTimer arms a timer d after the clock's current time.
func (m *ManualTimers) NewTimer(d time.Duration) *ManualTimer {
	m.mu.Lock()
	t := &ManualTimer{c: make(chan time.Time, 1), at: m.clock.Now().Add(d), active: true, owner: m}
	m.timers = append(m.timers, t)
	m.mu.Unlock()

	select {
	case m.armed <- d:
	default:
	}
	return t
}

// Armed receives the duration of every timer created, letting tests wait for
// a goroutine to arm one.
func (m *ManualTimers) Armed() <-chan time.Duration {
	return m.armed
}

// Advance moves the clock and fires every active timer that is now due.
func (m *ManualTimers) Advance(d time.Duration) time.Time {
	now := m.clock.Advance(d)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		if t.active && !t.at.After(now) {
			t.active = false
			t.c <- now
		}
	}
	return now
}

// Active counts timers that have neither fired nor been stopped.
func (m *ManualTimers) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.active {
			n++
		}
	}
	return n
}

func (t *ManualTimer) C() <-chan time.Time {
	return t.c
}

// Stop reports whether the call stopped an active timer.
func (t *ManualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	was := t.active
	t.active = false
	return was
}
