package checkin

import (
	"context"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 200 * time.Millisecond
)

// Retrier retries transient store failures with linear backoff: the wait
// before attempt n+1 is n*Backoff.
type Retrier struct {
	Attempts int
	Backoff  time.Duration
}

func NewRetrier(attempts int, backoff time.Duration) Retrier {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if backoff < 0 {
		backoff = 0
	}
	return Retrier{Attempts: attempts, Backoff: backoff}
}

// Do runs fn until it succeeds, fails permanently, or the budget is spent.
// The last error is returned when the budget runs out.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !persistence.IsTransient(err) || attempt == attempts {
			return err
		}

		wait := time.Duration(attempt) * r.Backoff
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
