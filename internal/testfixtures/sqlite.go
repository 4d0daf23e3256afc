package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hray3182/lifeline-checkin/internal/sqlitestore"
)

// NewSQLiteStore opens a migrated store in a temporary directory, using clock
// for server-assigned timestamps. It is closed when the test ends.
func NewSQLiteStore(tb testing.TB, clock *Clock) *sqlitestore.Store {
	tb.Helper()

	store, err := sqlitestore.Open(context.Background(), filepath.Join(tb.TempDir(), "lifeline.db"),
		sqlitestore.WithClock(clock.NowFunc()))
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}
