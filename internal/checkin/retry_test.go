package checkin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

func TestRetrierRetriesTransientOnly(t *testing.T) {
	r := NewRetrier(3, 0)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: timeout", persistence.ErrTransient)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = r.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetrierExhaustsBudget(t *testing.T) {
	r := NewRetrier(3, time.Millisecond)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("%w: attempt %d", persistence.ErrTransient, calls)
	})
	assert.True(t, persistence.IsTransient(err))
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)
}

func TestRetrierStopsOnCancel(t *testing.T) {
	r := NewRetrier(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Do(ctx, func(context.Context) error {
		calls++
		return persistence.ErrTransient
	})
	assert.ErrorIs(t, err, persistence.ErrTransient)
	assert.Equal(t, 1, calls)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "invalid_argument", ErrorKind(fmt.Errorf("x: %w", ErrInvalidArgument)))
	assert.Equal(t, "not_found", ErrorKind(persistence.ErrNotFound))
	assert.Equal(t, "transient", ErrorKind(persistence.ErrTransient))
	assert.Equal(t, "conflict", ErrorKind(persistence.ErrConflict))
	assert.Equal(t, "permanent", ErrorKind(errors.New("disk on fire")))
}
