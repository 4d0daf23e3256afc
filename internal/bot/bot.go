package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/bot/handlers"
	"github.com/hray3182/lifeline-checkin/internal/checkin"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
	logger   *zap.Logger
}

// New connects to Telegram. extractor may be nil to disable free-text
// check-ins.
func New(token string, svc *checkin.Service, extractor handlers.Extractor, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bot{
		api:      api,
		handlers: handlers.New(api, svc, extractor, logger),
		logger:   logger,
	}, nil
}

// API exposes the client so alerts can be delivered through the same bot.
func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("telegram bot authorized", zap.String("account", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	// Handle commands
	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
		return
	}

	b.handlers.HandleMessage(ctx, update.Message)
}
