package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		notFound  bool
	}{
		{name: "no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), notFound: true},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, transient: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, transient: true},
		{name: "too many connections", err: &pgconn.PgError{Code: "53300"}, transient: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.transient, persistence.IsTransient(got))
			assert.Equal(t, tt.notFound, errors.Is(got, persistence.ErrNotFound))
		})
	}
}

func TestSerializationFailure(t *testing.T) {
	assert.True(t, isSerializationFailure(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, isSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isSerializationFailure(nil))
}
