package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/status"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
)

func (h *Handlers) handleOK(ctx context.Context, msg *tgbotapi.Message) {
	var in checkin.Input
	if note := strings.TrimSpace(msg.CommandArguments()); note != "" && h.ai != nil {
		ext, err := h.ai.Extract(ctx, note)
		if err != nil {
			// The check-in itself matters more than the tags.
			h.logger.Warn("answer extraction failed", zap.String("user_id", userID(msg)), zap.Error(err))
		} else {
			in.Answers = ext.Answers
		}
	}
	h.recordCheckIn(ctx, msg, in, "")
}

func (h *Handlers) handleFreeText(ctx context.Context, msg *tgbotapi.Message) {
	if h.ai == nil {
		h.sendMessage(msg.Chat.ID, "AI 功能尚未啟用，請使用 /ok 報平安")
		return
	}

	ext, err := h.ai.Extract(ctx, msg.Text)
	if err != nil {
		h.logger.Warn("answer extraction failed", zap.String("user_id", userID(msg)), zap.Error(err))
		h.sendMessage(msg.Chat.ID, "❌ 我沒看懂，請再說一次，或使用 /ok 報平安")
		return
	}
	if !ext.IsCheckIn {
		if ext.Reply != "" {
			h.sendPlain(msg.Chat.ID, ext.Reply)
		}
		return
	}
	h.recordCheckIn(ctx, msg, checkin.Input{Answers: ext.Answers}, ext.Reply)
}

func (h *Handlers) recordCheckIn(ctx context.Context, msg *tgbotapi.Message, in checkin.Input, reply string) {
	id := userID(msg)
	result, err := h.svc.RecordCheckIn(ctx, id, in)
	if err != nil {
		h.replyError(msg, "record_check_in", err)
		return
	}

	text := formatCheckIn(result, h.svc.Location(ctx, id))
	if reply != "" {
		text = reply + "\n\n" + text
	}
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	id := userID(msg)
	view, err := h.svc.Status(ctx, id, h.now())
	if err != nil {
		h.replyError(msg, "status", err)
		return
	}
	st, err := h.svc.State(ctx, id)
	if err != nil {
		h.replyError(msg, "status", err)
		return
	}
	h.sendMessage(msg.Chat.ID, formatStatus(view, st, h.svc.Location(ctx, id)))
}

func (h *Handlers) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	days := defaultHistoryDays
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			h.sendMessage(msg.Chat.ID, "請提供正確的天數\n用法: /history [天數]")
			return
		}
		days = min(n, maxHistoryDays)
	}

	id := userID(msg)
	today := h.now().In(h.svc.Location(ctx, id))
	from := status.DateKey(today.AddDate(0, 0, -(days - 1)))
	hist, err := h.svc.History(ctx, id, from, status.DateKey(today))
	if err != nil {
		h.replyError(msg, "history", err)
		return
	}
	h.sendMessage(msg.Chat.ID, formatHistory(hist))
}
