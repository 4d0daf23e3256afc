package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/status"
	"github.com/hray3182/lifeline-checkin/internal/timeofday"
)

const maxHistoryRecords = 10

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "無"
	}
	return t.In(loc).Format("01/02 15:04")
}

func formatCheckIn(result *checkin.Result, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("✅ *已報平安！*\n\n")
	if result.StreakState == status.Broken && result.Streak.Current == 1 {
		sb.WriteString("🌱 重新開始累積，今天是第 1 天\n")
	} else {
		sb.WriteString(fmt.Sprintf("🔥 連續 %d 天\n", result.Streak.Current))
	}
	if len(result.Satisfied) > 0 {
		sb.WriteString(fmt.Sprintf("🕘 完成時段: %s\n", strings.Join(result.Satisfied, "、")))
	}
	sb.WriteString(fmt.Sprintf("⏰ 下次報平安: %s", formatTime(result.NextExpected, loc)))
	return sb.String()
}

func formatStatus(view status.View, st *models.UserState, loc *time.Location) string {
	var sb strings.Builder
	switch view.Status {
	case status.SOSActive:
		sb.WriteString("🔴 *緊急求救中*\n\n")
	case status.RunningLate:
		sb.WriteString("🟡 *尚未報平安*\n\n")
	default:
		sb.WriteString("🟢 *平安*\n\n")
	}

	for _, entry := range view.Schedules {
		mark := "⏳"
		switch {
		case timeofday.Contains(view.Completed, entry):
			mark = "✅"
		case timeofday.Contains(view.Overdue, entry):
			mark = "⚠️"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, entry))
	}

	sb.WriteString(fmt.Sprintf("\n🔥 連續 %d 天\n", view.Streak))
	if st.VacationMode {
		sb.WriteString("🏖 休假模式中\n")
	} else {
		sb.WriteString(fmt.Sprintf("⏰ 下次報平安: %s\n", formatTime(view.NextExpected, loc)))
	}
	if st.LastLocation != nil {
		where := st.LastLocation.Address
		if where == "" {
			where = fmt.Sprintf("%.4f, %.4f", st.LastLocation.Latitude, st.LastLocation.Longitude)
		}
		sb.WriteString(fmt.Sprintf("📍 %s (%s)\n", where, st.LastLocation.UpdatedAt.In(loc).Format("01/02 15:04")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSchedules(stored []string) string {
	var sb strings.Builder
	sb.WriteString("⏰ *報平安時間*\n")
	for _, entry := range status.EffectiveSchedules(stored) {
		sb.WriteString(fmt.Sprintf("\n• %s", entry))
	}
	return sb.String()
}

func formatAnswers(a models.Answers) string {
	var parts []string
	for _, p := range []struct{ label, value string }{
		{"心情", a.Mood},
		{"睡眠", a.Sleep},
		{"精神", a.Energy},
		{"服藥", a.Medication},
	} {
		if p.value != "" {
			parts = append(parts, p.label+": "+p.value)
		}
	}
	return strings.Join(parts, "，")
}

func formatHistory(hist *checkin.History) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *報平安紀錄* (%s ~ %s)\n", hist.From, hist.To))
	if len(hist.Records) == 0 {
		sb.WriteString("\n這段期間沒有紀錄")
		return sb.String()
	}

	sb.WriteString("\n")
	for i := len(hist.Days) - 1; i >= 0; i-- {
		d := hist.Days[i]
		sb.WriteString(fmt.Sprintf("%s  %d/%d (%.0f%%)\n", d.Date, d.Satisfied, d.Scheduled, d.Rate*100))
	}

	sb.WriteString("\n*最近紀錄*\n")
	shown := 0
	for i := len(hist.Records) - 1; i >= 0 && shown < maxHistoryRecords; i-- {
		r := hist.Records[i]
		line := "• " + r.Timestamp.Format("01/02 15:04")
		if answers := formatAnswers(r.Answers); answers != "" {
			line += "  " + answers
		}
		sb.WriteString(line + "\n")
		shown++
	}
	return strings.TrimRight(sb.String(), "\n")
}
