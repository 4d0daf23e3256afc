package notify

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type EntryKind string

const (
	KindFired EntryKind = "fired"
	KindPush  EntryKind = "push"
)

// Entry is one persisted cooldown or push arrival.
type Entry struct {
	Kind      EntryKind
	Class     Class
	SubjectID string
	At        time.Time
}

// Ledger persists gate state across restarts.
type Ledger interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, e Entry) error
}

// SQLiteLedger keeps the ledger in a local SQLite file, one row per key.
type SQLiteLedger struct {
	db *sql.DB
}

func OpenSQLiteLedger(ctx context.Context, path string) (*SQLiteLedger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notification_ledger (
			kind TEXT NOT NULL,
			class TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			at_unix_nano INTEGER NOT NULL,
			PRIMARY KEY (kind, class, subject_id)
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Load(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT kind, class, subject_id, at_unix_nano FROM notification_ledger`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.Kind, &e.Class, &e.SubjectID, &at); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		e.At = time.Unix(0, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save keeps the newest instant per key.
func (l *SQLiteLedger) Save(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO notification_ledger (kind, class, subject_id, at_unix_nano)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, class, subject_id) DO UPDATE SET
			at_unix_nano = MAX(at_unix_nano, excluded.at_unix_nano)`,
		e.Kind, e.Class, e.SubjectID, e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save ledger entry: %w", err)
	}
	return nil
}
