package root

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/ai"
	"github.com/hray3182/lifeline-checkin/internal/api"
	"github.com/hray3182/lifeline-checkin/internal/bot"
	"github.com/hray3182/lifeline-checkin/internal/bot/handlers"
	"github.com/hray3182/lifeline-checkin/internal/config"
	"github.com/hray3182/lifeline-checkin/internal/notify"
	"github.com/hray3182/lifeline-checkin/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the check-in watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	if b.run != nil {
		go func() {
			if err := b.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("change feed stopped", zap.Error(err))
			}
		}()
	}

	svc := newService(cfg, b, logger)

	// Initialize AI client (optional)
	var extractor handlers.Extractor
	if cfg.AIAPIKey != "" {
		extractor = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		logger.Info("ai client initialized", zap.String("model", cfg.AIModel))
	} else {
		logger.Info("ai client not configured, free-text check-ins disabled")
	}

	var tg *bot.Bot
	if cfg.TelegramToken != "" {
		tg, err = bot.New(cfg.TelegramToken, svc, extractor, logger.Named("bot"))
		if err != nil {
			return err
		}
	}

	var deliverer notify.Deliverer = notify.LogDeliverer{Logger: logger.Named("alerts")}
	if tg != nil && cfg.TelegramChatID != 0 {
		deliverer = notify.NewTelegramDeliverer(tg.API(), cfg.TelegramChatID)
	}

	ledger, err := notify.OpenSQLiteLedger(ctx, cfg.NotifyLedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	selfID := cfg.SelfUserID
	if selfID == "" && cfg.WatchRole == string(scheduler.RoleSelf) {
		selfID = cfg.WatchSubjectID
	}
	gate := notify.NewGate(ledger, deliverer, selfID,
		notify.WithCooldowns(notify.Cooldowns{
			Self:       cfg.CooldownMissed,
			Family:     cfg.CooldownMissed,
			SOS:        cfg.CooldownSOS,
			PushWindow: cfg.PushDedupWindow,
		}),
		notify.WithLogger(logger.Named("gate")),
	)
	if err := gate.Init(ctx); err != nil {
		return fmt.Errorf("failed to load notification ledger: %w", err)
	}

	handlerOpts := []api.Option{
		api.WithLogger(logger.Named("api")),
		api.WithHealthCheck(b.health),
	}
	if cfg.WatchSubjectID != "" {
		watcher := scheduler.New(b.store, b.feed, gate, svc, scheduler.Role(cfg.WatchRole),
			scheduler.WithGrace(cfg.DeadlineGrace),
			scheduler.WithLocation(cfg.Location()),
			scheduler.WithLogger(logger.Named("watcher")),
		)
		if err := watcher.Watch(ctx, cfg.WatchSubjectID); err != nil {
			return fmt.Errorf("failed to watch %s: %w", cfg.WatchSubjectID, err)
		}
		defer watcher.Stop()
		handlerOpts = append(handlerOpts, api.WithReload(watcher.Notify))
		logger.Info("watching subject", zap.String("subject_id", cfg.WatchSubjectID), zap.String("role", cfg.WatchRole))
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(svc, gate, handlerOpts...)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if tg != nil {
		go func() {
			if err := tg.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("component failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	return err
}
