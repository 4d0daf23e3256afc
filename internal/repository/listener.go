package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/database"
	"github.com/hray3182/lifeline-checkin/internal/feed"
	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

const changeChannel = "user_state_changed"

// Listener turns user_state NOTIFY events into full snapshots for
// subscribers. It is the persistence.Feed of the Postgres deployment.
type Listener struct {
	db        *database.DB
	repo      *StateRepository
	hub       *feed.Hub
	logger    *zap.Logger
	reconnect time.Duration
}

func NewListener(db *database.DB, repo *StateRepository, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		db:        db,
		repo:      repo,
		hub:       feed.NewHub(),
		logger:    logger,
		reconnect: 2 * time.Second,
	}
}

// Subscribe implements persistence.Feed.
func (l *Listener) Subscribe(ctx context.Context, userID string) (<-chan *models.UserState, error) {
	return l.hub.Subscribe(ctx, userID)
}

// Run listens until ctx is done, reconnecting after connection loss.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("change feed listener started")
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("change feed listener stopped")
			return nil
		}
		l.logger.Warn("change feed connection lost", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		l.dispatch(ctx, n.Payload)
	}
}

// dispatch re-reads the whole row; the payload only names the user.
func (l *Listener) dispatch(ctx context.Context, userID string) {
	if l.hub.Subscribers(userID) == 0 {
		return
	}
	st, err := l.repo.UserState(ctx, userID)
	if err != nil {
		l.logger.Warn("reload user state failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	l.hub.Publish(st)
}

var _ persistence.Feed = (*Listener)(nil)
