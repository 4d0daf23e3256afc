// Package sqlitestore implements the persistence contract on a local SQLite
// file, for single-node deployments and tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hray3182/lifeline-checkin/internal/feed"
	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

// Store is a persistence.Store and persistence.Feed backed by SQLite. All
// access goes through one connection, so transactions are serialized.
type Store struct {
	db     *sql.DB
	hub    *feed.Hub
	now    func() time.Time
	logger *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (and creates if missing) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		hub:    feed.NewHub(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

// RunInTx runs fn in a transaction and publishes every saved state after
// commit.
func (s *Store) RunInTx(ctx context.Context, fn persistence.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}

	t := &sqlTx{tx: tx, store: s}
	if err := fn(ctx, t); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}

	for _, st := range t.saved {
		s.hub.Publish(st)
	}
	return nil
}

// Subscribe implements persistence.Feed.
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan *models.UserState, error) {
	return s.hub.Subscribe(ctx, userID)
}

// AddScheduleEntry implements persistence.Store.
func (s *Store) AddScheduleEntry(ctx context.Context, userID, entry, defaultEntry, timezone string, now time.Time) error {
	return s.mutate(ctx, userID, func(tx *sql.Tx) error {
		initial, err := encodeList(dedupe([]string{defaultEntry, entry}))
		if err != nil {
			return err
		}
		ts := formatTime(now)
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO user_state (user_id, schedules, timezone, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			userID, initial, timezone, ts, ts,
		); err != nil {
			return classify(fmt.Errorf("insert user state: %w", err))
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE user_state
			SET schedules = (
				SELECT json_group_array(value) FROM (
					SELECT value FROM json_each(user_state.schedules)
					UNION
					SELECT ?
				)
			), updated_at = ?
			WHERE user_id = ?`,
			entry, formatTime(s.now()), userID,
		)
		if err != nil {
			return classify(fmt.Errorf("union schedule: %w", err))
		}
		return nil
	})
}

// RemoveScheduleEntry implements persistence.Store.
func (s *Store) RemoveScheduleEntry(ctx context.Context, userID, entry string) error {
	return s.mutate(ctx, userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE user_state
			SET schedules = (SELECT json_group_array(value) FROM json_each(user_state.schedules) WHERE value <> ?),
			    completed_today = (SELECT json_group_array(value) FROM json_each(user_state.completed_today) WHERE value <> ?),
			    updated_at = ?
			WHERE user_id = ?`,
			entry, entry, formatTime(s.now()), userID,
		)
		if err != nil {
			return classify(fmt.Errorf("remove schedule: %w", err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// mutate runs a single-statement mutation and publishes the result.
func (s *Store) mutate(ctx context.Context, userID string, apply func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	if err := apply(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	st, err := scanUserState(tx.QueryRowContext(ctx, selectUserState+` WHERE user_id = ?`, userID))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	s.hub.Publish(st)
	return nil
}

// UserState implements persistence.Store.
func (s *Store) UserState(ctx context.Context, userID string) (*models.UserState, error) {
	return scanUserState(s.db.QueryRowContext(ctx, selectUserState+` WHERE user_id = ?`, userID))
}

// CheckIns implements persistence.Store.
func (s *Store) CheckIns(ctx context.Context, userID string, from, to time.Time) ([]models.CheckInRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCheckIn+`
		WHERE user_id = ? AND checked_in_at >= ? AND checked_in_at < ?
		ORDER BY checked_in_at ASC`,
		userID, formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, classify(fmt.Errorf("query check-ins: %w", err))
	}
	defer rows.Close()

	var records []models.CheckInRecord
	for rows.Next() {
		r, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

// classify maps driver errors onto the persistence taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", persistence.ErrTransient, err)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", persistence.ErrTransient, err)
		}
	}
	return err
}
