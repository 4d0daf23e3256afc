package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handlers) handleSchedules(ctx context.Context, msg *tgbotapi.Message) {
	st, err := h.svc.State(ctx, userID(msg))
	if err != nil {
		h.replyError(msg, "schedules", err)
		return
	}
	h.sendMessage(msg.Chat.ID, formatSchedules(st.Schedules))
}

func (h *Handlers) handleAddTime(ctx context.Context, msg *tgbotapi.Message) {
	entry := strings.TrimSpace(msg.CommandArguments())
	if entry == "" {
		h.sendMessage(msg.Chat.ID, "請提供時間\n用法: /addtime 8:30 PM")
		return
	}

	st, err := h.svc.AddSchedule(ctx, userID(msg), entry)
	if err != nil {
		h.replyError(msg, "add_schedule", err)
		return
	}
	h.sendMessage(msg.Chat.ID, "✅ 已新增報平安時間\n\n"+formatSchedules(st.Schedules))
}

func (h *Handlers) handleRemoveTime(ctx context.Context, msg *tgbotapi.Message) {
	entry := strings.TrimSpace(msg.CommandArguments())
	if entry == "" {
		h.sendMessage(msg.Chat.ID, "請提供要移除的時間\n用法: /removetime 8:30 PM")
		return
	}

	st, err := h.svc.RemoveSchedule(ctx, userID(msg), entry)
	if err != nil {
		h.replyError(msg, "remove_schedule", err)
		return
	}
	h.sendMessage(msg.Chat.ID, "🗑 已移除報平安時間\n\n"+formatSchedules(st.Schedules))
}

func (h *Handlers) handleVacation(ctx context.Context, msg *tgbotapi.Message) {
	var on bool
	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		h.sendMessage(msg.Chat.ID, "用法: /vacation on 或 /vacation off")
		return
	}

	if _, err := h.svc.SetVacationMode(ctx, userID(msg), on); err != nil {
		h.replyError(msg, "set_vacation", err)
		return
	}
	if on {
		h.sendMessage(msg.Chat.ID, "🏖 已開啟休假模式，這段時間不會提醒你報平安")
	} else {
		h.sendMessage(msg.Chat.ID, "👋 歡迎回來！已關閉休假模式")
	}
}

func (h *Handlers) handleSOS(ctx context.Context, msg *tgbotapi.Message, active bool) {
	if _, err := h.svc.SetSOS(ctx, userID(msg), active); err != nil {
		h.replyError(msg, "set_sos", err)
		return
	}
	if active {
		h.sendMessage(msg.Chat.ID, "🆘 *已發出緊急求救*\n\n家人會收到通知。狀況解除後請輸入 /safe")
	} else {
		h.sendMessage(msg.Chat.ID, "✅ 已解除緊急求救")
	}
}
