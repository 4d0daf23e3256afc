// Package notify decides whether a local alert fires. Cooldowns are keyed by
// alert class and subject, persisted in a ledger, and cross-checked against
// arrivals on the external push channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidArgument is returned for an empty subject id.
var ErrInvalidArgument = errors.New("notify: invalid argument")

type Class string

const (
	ClassSelfMissed   Class = "self_missed"
	ClassFamilyMissed Class = "family_missed"
	ClassSOS          Class = "sos"
)

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityCritical
)

// Alert is one delivery request.
type Alert struct {
	Class     Class
	SubjectID string
	Count     int
	Priority  Priority
	FiredAt   time.Time
}

// Deliverer performs the actual delivery.
type Deliverer interface {
	Deliver(ctx context.Context, alert Alert) error
}

// SkipReason says why a fire request was dropped.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipNoMissed       SkipReason = "no_missed"
	SkipVacation       SkipReason = "vacation"
	SkipNotInitialized SkipReason = "not_initialized"
	SkipCooldown       SkipReason = "cooldown"
	SkipPushedRecently SkipReason = "pushed_recently"
)

// Decision is the outcome of a fire request.
type Decision struct {
	Fired  bool
	Reason SkipReason
}

func skipped(reason SkipReason) Decision {
	return Decision{Reason: reason}
}

// Cooldowns holds the dedup windows.
type Cooldowns struct {
	Self       time.Duration
	Family     time.Duration
	SOS        time.Duration
	PushWindow time.Duration
}

// DefaultCooldowns returns the standard windows.
func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Self:       30 * time.Second,
		Family:     30 * time.Second,
		SOS:        5 * time.Minute,
		PushWindow: 5 * time.Second,
	}
}

func (c Cooldowns) forClass(class Class) time.Duration {
	switch class {
	case ClassSOS:
		return c.SOS
	case ClassFamilyMissed:
		return c.Family
	default:
		return c.Self
	}
}

// Gate is the notification dedup gate. Concurrent fire requests for the same
// key are resolved by the cooldown reservation, not by serializing delivery.
type Gate struct {
	ledger    Ledger
	deliverer Deliverer
	selfID    string
	cooldowns Cooldowns
	now       func() time.Time
	logger    *zap.Logger

	mu          sync.Mutex
	initialized bool
	fired       map[string]time.Time
	pushed      map[string]time.Time
}

type Option func(*Gate)

func WithCooldowns(c Cooldowns) Option {
	return func(g *Gate) { g.cooldowns = c }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate builds an uninitialized gate; call Init before firing. selfID is the
// local user the self-missed alert is about.
func NewGate(ledger Ledger, deliverer Deliverer, selfID string, opts ...Option) *Gate {
	g := &Gate{
		ledger:    ledger,
		deliverer: deliverer,
		selfID:    selfID,
		cooldowns: DefaultCooldowns(),
		now:       time.Now,
		logger:    zap.NewNop(),
		fired:     make(map[string]time.Time),
		pushed:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Init loads persisted cooldowns and push arrivals. Entries already recorded
// in memory win when newer.
func (g *Gate) Init(ctx context.Context) error {
	entries, err := g.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("load notification ledger: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range entries {
		target := g.fired
		if e.Kind == KindPush {
			target = g.pushed
		}
		k := key(e.Class, e.SubjectID)
		if cur, ok := target[k]; !ok || e.At.After(cur) {
			target[k] = e.At
		}
	}
	g.initialized = true
	g.logger.Info("notification gate initialized", zap.Int("entries", len(entries)))
	return nil
}

// FireSelfMissedCheckIn alerts the local user about count missed check-ins.
func (g *Gate) FireSelfMissedCheckIn(ctx context.Context, count int, vacation bool) (Decision, error) {
	if g.selfID == "" {
		return Decision{}, fmt.Errorf("%w: gate has no self id", ErrInvalidArgument)
	}
	if count < 1 {
		return skipped(SkipNoMissed), nil
	}
	if vacation {
		return skipped(SkipVacation), nil
	}
	return g.fire(ctx, Alert{Class: ClassSelfMissed, SubjectID: g.selfID, Count: count, Priority: PriorityNormal})
}

// FireFamilyMissedCheckIn alerts a family member that subjectID missed count
// check-ins. Each subject has its own cooldown.
func (g *Gate) FireFamilyMissedCheckIn(ctx context.Context, count int, subjectID string) (Decision, error) {
	if subjectID == "" {
		return Decision{}, fmt.Errorf("%w: empty subject id", ErrInvalidArgument)
	}
	if count < 1 {
		return skipped(SkipNoMissed), nil
	}
	return g.fire(ctx, Alert{Class: ClassFamilyMissed, SubjectID: subjectID, Count: count, Priority: PriorityNormal})
}

// FireSOS delivers at critical priority and ignores vacation mode.
func (g *Gate) FireSOS(ctx context.Context, subjectID string) (Decision, error) {
	if subjectID == "" {
		return Decision{}, fmt.Errorf("%w: empty subject id", ErrInvalidArgument)
	}
	return g.fire(ctx, Alert{Class: ClassSOS, SubjectID: subjectID, Count: 1, Priority: PriorityCritical})
}

// NoteExternalPush records that the push channel delivered an equivalent
// alert, so a local fire within the push window is suppressed.
func (g *Gate) NoteExternalPush(ctx context.Context, class Class, subjectID string) error {
	if subjectID == "" {
		return fmt.Errorf("%w: empty subject id", ErrInvalidArgument)
	}
	now := g.now()

	g.mu.Lock()
	g.pushed[key(class, subjectID)] = now
	g.mu.Unlock()

	if err := g.ledger.Save(ctx, Entry{Kind: KindPush, Class: class, SubjectID: subjectID, At: now}); err != nil {
		return fmt.Errorf("persist push arrival: %w", err)
	}
	return nil
}

func (g *Gate) fire(ctx context.Context, alert Alert) (Decision, error) {
	logger := g.logger.With(zap.String("class", string(alert.Class)), zap.String("subject_id", alert.SubjectID))
	k := key(alert.Class, alert.SubjectID)
	now := g.now()

	g.mu.Lock()
	if !g.initialized {
		g.mu.Unlock()
		logger.Warn("notification gate used before init")
		return skipped(SkipNotInitialized), nil
	}
	if last, ok := g.fired[k]; ok && now.Sub(last) < g.cooldowns.forClass(alert.Class) {
		g.mu.Unlock()
		logger.Debug("alert within cooldown", zap.Time("last_fired", last))
		return skipped(SkipCooldown), nil
	}
	if p, ok := g.pushed[k]; ok && !p.After(now) && now.Sub(p) < g.cooldowns.PushWindow {
		g.mu.Unlock()
		logger.Debug("alert already pushed", zap.Time("pushed_at", p))
		return skipped(SkipPushedRecently), nil
	}
	prev, hadPrev := g.fired[k]
	g.fired[k] = now
	g.mu.Unlock()

	alert.FiredAt = now
	if err := g.deliverer.Deliver(ctx, alert); err != nil {
		g.mu.Lock()
		if g.fired[k].Equal(now) {
			if hadPrev {
				g.fired[k] = prev
			} else {
				delete(g.fired, k)
			}
		}
		g.mu.Unlock()
		logger.Warn("alert delivery failed", zap.Error(err))
		return Decision{}, fmt.Errorf("deliver %s alert: %w", alert.Class, err)
	}

	if err := g.ledger.Save(ctx, Entry{Kind: KindFired, Class: alert.Class, SubjectID: alert.SubjectID, At: now}); err != nil {
		logger.Error("persist cooldown failed", zap.Error(err))
	}
	logger.Info("alert fired", zap.Int("count", alert.Count))
	return Decision{Fired: true}, nil
}

func key(class Class, subjectID string) string {
	return string(class) + "/" + subjectID
}
