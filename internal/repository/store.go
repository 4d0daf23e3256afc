package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/database"
	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

const defaultConflictRetries = 5

// StateRepository is the Postgres persistence.Store. Transactions run at
// SERIALIZABLE and are replayed on serialization failures.
type StateRepository struct {
	db              *database.DB
	logger          *zap.Logger
	conflictRetries int
}

func NewStateRepository(db *database.DB, logger *zap.Logger) *StateRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateRepository{db: db, logger: logger, conflictRetries: defaultConflictRetries}
}

// RunInTx implements persistence.Store.
func (r *StateRepository) RunInTx(ctx context.Context, fn persistence.TxFunc) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	var err error
	for attempt := 1; attempt <= r.conflictRetries; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.db.Pool, opts, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
		if !isSerializationFailure(err) {
			return classify(err)
		}
		r.logger.Debug("serialization conflict, replaying transaction", zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: %w", persistence.ErrConflict, err)
}

// AddScheduleEntry implements persistence.Store with a single upsert that
// unions entry into the stored array.
func (r *StateRepository) AddScheduleEntry(ctx context.Context, userID, entry, defaultEntry, timezone string, now time.Time) error {
	initial := []string{defaultEntry}
	if entry != defaultEntry {
		initial = append(initial, entry)
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_state (user_id, schedules, timezone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     schedules = ARRAY(SELECT DISTINCT unnest(array_append(user_state.schedules, $5::text))),
		     updated_at = now()`,
		userID, initial, timezone, now, entry,
	)
	if err != nil {
		return classify(fmt.Errorf("add schedule entry: %w", err))
	}
	return nil
}

// RemoveScheduleEntry implements persistence.Store.
func (r *StateRepository) RemoveScheduleEntry(ctx context.Context, userID, entry string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE user_state
		 SET schedules = array_remove(schedules, $2),
		     completed_today = array_remove(completed_today, $2),
		     updated_at = now()
		 WHERE user_id = $1`,
		userID, entry,
	)
	if err != nil {
		return classify(fmt.Errorf("remove schedule entry: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// UserState implements persistence.Store.
func (r *StateRepository) UserState(ctx context.Context, userID string) (*models.UserState, error) {
	return scanUserState(r.db.Pool.QueryRow(ctx, selectUserState+` WHERE user_id = $1`, userID))
}

// CheckIns implements persistence.Store.
func (r *StateRepository) CheckIns(ctx context.Context, userID string, from, to time.Time) ([]models.CheckInRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		selectCheckIn+` WHERE user_id = $1 AND checked_in_at >= $2 AND checked_in_at < $3 ORDER BY checked_in_at ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("query check-ins: %w", err))
	}
	defer rows.Close()

	var records []models.CheckInRecord
	for rows.Next() {
		record, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

var _ persistence.Store = (*StateRepository)(nil)

func isSerializationFailure(err error) bool {
	code := sqlState(err)
	return code == "40001" || code == "40P01"
}
