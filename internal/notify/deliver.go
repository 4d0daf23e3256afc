package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the deliverer needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDeliverer sends alerts to one chat.
type TelegramDeliverer struct {
	sender Sender
	chatID int64
}

func NewTelegramDeliverer(sender Sender, chatID int64) *TelegramDeliverer {
	return &TelegramDeliverer{sender: sender, chatID: chatID}
}

func (d *TelegramDeliverer) Deliver(ctx context.Context, alert Alert) error {
	msg := tgbotapi.NewMessage(d.chatID, RenderAlert(alert))
	msg.ParseMode = "Markdown"
	if alert.Priority == PriorityCritical {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ 我已確認", "sos_ack:"+alert.SubjectID),
			),
		)
	}

	if _, err := d.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// RenderAlert formats the alert text.
func RenderAlert(alert Alert) string {
	switch alert.Class {
	case ClassSOS:
		return fmt.Sprintf("🆘 *緊急求救*\n\n`%s` 發出了 SOS，請立即聯絡！", alert.SubjectID)
	case ClassFamilyMissed:
		return fmt.Sprintf("⚠️ *未報平安*\n\n`%s` 今天有 %d 個時段尚未報平安。", alert.SubjectID, alert.Count)
	default:
		return fmt.Sprintf("⏰ *該報平安了*\n\n你有 %d 個時段尚未報平安，輸入 /ok 回報。", alert.Count)
	}
}

// LogDeliverer only logs; it is used when no delivery channel is configured.
type LogDeliverer struct {
	Logger *zap.Logger
}

func (d LogDeliverer) Deliver(ctx context.Context, alert Alert) error {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("alert",
		zap.String("class", string(alert.Class)),
		zap.String("subject_id", alert.SubjectID),
		zap.Int("count", alert.Count),
		zap.Bool("critical", alert.Priority == PriorityCritical),
	)
	return nil
}
