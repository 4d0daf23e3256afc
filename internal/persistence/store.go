// Package persistence defines the contract the check-in coordinators need
// from a transactional multi-writer document store.
package persistence

import (
	"context"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/models"
)

// Tx is a serializable transaction. Implementations expect every read to
// happen before the first write.
type Tx interface {
	UserState(ctx context.Context, userID string) (*models.UserState, error)
	HasCheckIn(ctx context.Context, id string) (bool, error)
	InsertCheckIn(ctx context.Context, record *models.CheckInRecord) error
	SaveUserState(ctx context.Context, state *models.UserState) error
}

// TxFunc is the body of a transaction. It may run more than once when the
// store retries a write conflict, so it must not have side effects outside
// tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the shared state behind every session of a user.
type Store interface {
	RunInTx(ctx context.Context, fn TxFunc) error

	// AddScheduleEntry unions entry into the user's schedule set with a single
	// storage-level operation. A missing user is created with the initial
	// set {defaultEntry, entry}.
	AddScheduleEntry(ctx context.Context, userID, entry, defaultEntry, timezone string, now time.Time) error
	// RemoveScheduleEntry removes entry from both the schedule set and the
	// completion set with a single storage-level operation.
	RemoveScheduleEntry(ctx context.Context, userID, entry string) error

	UserState(ctx context.Context, userID string) (*models.UserState, error)
	// CheckIns returns records with from <= timestamp < to, oldest first.
	CheckIns(ctx context.Context, userID string, from, to time.Time) ([]models.CheckInRecord, error)
}

// Feed streams full snapshots of a user's state after every committed change.
// The channel is closed when ctx is done.
type Feed interface {
	Subscribe(ctx context.Context, userID string) (<-chan *models.UserState, error)
}
