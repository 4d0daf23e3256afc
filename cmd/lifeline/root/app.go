package root

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/config"
	"github.com/hray3182/lifeline-checkin/internal/database"
	"github.com/hray3182/lifeline-checkin/internal/logging"
	"github.com/hray3182/lifeline-checkin/internal/persistence"
	"github.com/hray3182/lifeline-checkin/internal/repository"
	"github.com/hray3182/lifeline-checkin/internal/sqlitestore"
)

// backend is the selected store plus what the process needs to run it.
type backend struct {
	store  persistence.Store
	feed   persistence.Feed
	health func(ctx context.Context) error
	// run is the background feed pump, nil when the store publishes itself.
	run   func(ctx context.Context) error
	close func()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openBackend uses Postgres when DATABASE_URI is set and the local SQLite
// file otherwise. Postgres migrations are applied on open.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.DatabaseURI == "" {
		s, err := sqlitestore.Open(ctx, cfg.SQLitePath, sqlitestore.WithLogger(logger.Named("sqlite")))
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		return &backend{
			store:  s,
			feed:   s,
			health: s.DB().PingContext,
			close:  func() { _ = s.Close() },
		}, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURI, logger.Named("database"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("connected to database")

	repo := repository.NewStateRepository(db, logger.Named("repository"))
	listener := repository.NewListener(db, repo, logger.Named("listener"))
	return &backend{
		store:  repo,
		feed:   listener,
		health: db.Pool.Ping,
		run:    listener.Run,
		close:  db.Close,
	}, nil
}

func newService(cfg *config.Config, b *backend, logger *zap.Logger) *checkin.Service {
	return checkin.NewService(b.store,
		checkin.WithRetrier(checkin.NewRetrier(cfg.RetryAttempts, cfg.RetryBackoff)),
		checkin.WithLocation(cfg.Location()),
		checkin.WithLogger(logger.Named("checkin")),
	)
}

// openService is for the one-shot commands.
func openService(ctx context.Context) (*checkin.Service, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		b.close()
		_ = logger.Sync()
	}
	return newService(cfg, b, logger), cleanup, nil
}
