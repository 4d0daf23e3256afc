// Package handlers answers Telegram commands and free-text check-ins. The
// chat id is the user id in the shared state.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/ai"
	"github.com/hray3182/lifeline-checkin/internal/checkin"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Extractor reads free text into check-in answers.
type Extractor interface {
	Extract(ctx context.Context, text string) (*ai.Extraction, error)
}

type Handlers struct {
	api    Sender
	svc    *checkin.Service
	ai     Extractor
	now    func() time.Time
	logger *zap.Logger
}

func New(api Sender, svc *checkin.Service, extractor Extractor, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		api:    api,
		svc:    svc,
		ai:     extractor,
		now:    time.Now,
		logger: logger,
	}
}

func userID(msg *tgbotapi.Message) string {
	return strconv.FormatInt(msg.Chat.ID, 10)
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "ok":
		h.handleOK(ctx, msg)
	case "status":
		h.handleStatus(ctx, msg)
	case "history":
		h.handleHistory(ctx, msg)
	case "schedules":
		h.handleSchedules(ctx, msg)
	case "addtime":
		h.handleAddTime(ctx, msg)
	case "removetime":
		h.handleRemoveTime(ctx, msg)
	case "vacation":
		h.handleVacation(ctx, msg)
	case "sos":
		h.handleSOS(ctx, msg, true)
	case "safe":
		h.handleSOS(ctx, msg, false)
	default:
		h.sendMessage(msg.Chat.ID, "未知指令，請使用 /help 查看可用指令")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	h.handleFreeText(ctx, msg)
}

// HandleCallbackQuery handles the acknowledge button attached to SOS alerts.
func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(answer); err != nil {
		h.logger.Warn("answer callback failed", zap.Error(err))
	}

	action, subject, ok := strings.Cut(callback.Data, ":")
	if !ok || action != "sos_ack" || callback.Message == nil {
		return
	}

	h.logger.Info("sos acknowledged", zap.String("subject_id", subject), zap.Int64("by", callback.From.ID))
	text := fmt.Sprintf("%s\n\n✅ 已由 %s 確認", callback.Message.Text, callback.From.FirstName)
	h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID, text)
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := h.api.Send(edit); err != nil {
		h.logger.Warn("edit message failed", zap.Error(err))
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendPlain is for text we did not write, such as model replies.
func (h *Handlers) sendPlain(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// replyError logs err and tells the user what went wrong in their terms.
func (h *Handlers) replyError(msg *tgbotapi.Message, operation string, err error) {
	kind := checkin.ErrorKind(err)
	h.logger.Warn("command failed",
		zap.String("operation", operation),
		zap.String("user_id", userID(msg)),
		zap.String("error_kind", kind),
		zap.Error(err),
	)

	switch {
	case errors.Is(err, checkin.ErrNotFound):
		h.sendMessage(msg.Chat.ID, "還沒有你的資料，先用 /ok 報一次平安吧")
	case errors.Is(err, checkin.ErrInvalidArgument):
		h.sendMessage(msg.Chat.ID, "格式不正確，請使用 /help 查看用法")
	default:
		h.sendMessage(msg.Chat.ID, "系統忙碌中，請稍後再試")
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := fmt.Sprintf(`👋 你好 %s！

我是 LifeLine，每天陪你報平安。

到了設定的時間，輸入 /ok 或直接跟我說說今天的狀況就可以了。
如果錯過時間，我會提醒你，也會通知家人。

你的編號是 `+"`%s`"+`，家人可以用它來關心你。

使用 /help 查看所有指令`, msg.From.FirstName, userID(msg))
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := `📖 *指令列表*

*報平安*
/ok [心情] - 報平安
/status - 查看今天的狀態
/history [天數] - 查看報平安紀錄

*時間設定*
/schedules - 查看報平安時間
/addtime <時間> - 新增時間，例如 /addtime 8:30 PM
/removetime <時間> - 移除時間

*其他*
/vacation on|off - 開啟或關閉休假模式
/sos - 發出緊急求救
/safe - 解除緊急求救

💡 你也可以直接用文字告訴我你今天好不好！`
	h.sendMessage(msg.Chat.ID, text)
}
