// Package api exposes the check-in coordinators over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/notify"
	"github.com/hray3182/lifeline-checkin/internal/status"
)

// PushRecorder records arrivals on the external push channel.
type PushRecorder interface {
	NoteExternalPush(ctx context.Context, class notify.Class, subjectID string) error
}

type Handler struct {
	svc    *checkin.Service
	pushes PushRecorder
	health func(ctx context.Context) error
	reload func()
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Handler)

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

// WithReload is called after a push arrival is recorded, so a local watcher
// re-reads the subject instead of waiting for its feed.
func WithReload(fn func()) Option {
	return func(h *Handler) { h.reload = fn }
}

// NewHandler builds the handler set. pushes may be nil, in which case
// /alerts/push answers 503.
func NewHandler(svc *checkin.Service, pushes PushRecorder, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		pushes: pushes,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(h.logger))

	r.GET("/healthz", h.Healthz)

	users := r.Group("/users/:id")
	users.GET("/status", h.GetStatus)
	users.POST("/checkins", h.PostCheckIn)
	users.GET("/checkins", h.GetCheckIns)
	users.POST("/schedules", h.PostSchedule)
	users.DELETE("/schedules", h.DeleteSchedule)
	users.PUT("/vacation", h.PutVacation)
	users.PUT("/sos", h.PutSOS)

	r.POST("/alerts/push", h.PostPush)
	return r
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, NewError(http.StatusServiceUnavailable, "transient", "store unavailable: "+err.Error()))
			return
		}
	}
	HandleSuccess(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

func (h *Handler) GetStatus(c *gin.Context) {
	view, err := h.svc.Status(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		HandleError(c, h.logger, err, "Failed to derive status")
		return
	}
	HandleSuccess(c, http.StatusOK, view, nil)
}

func (h *Handler) PostCheckIn(c *gin.Context) {
	var body CheckInRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, h.logger, fmt.Errorf("%w: %w", errBadRequest, err), "Invalid JSON")
			return
		}
	}
	if err := body.check(); err != nil {
		HandleError(c, h.logger, err, "Check-in validation failed")
		return
	}

	result, err := h.svc.RecordCheckIn(c.Request.Context(), c.Param("id"), body.input())
	if err != nil {
		HandleError(c, h.logger, err, "Failed to record check-in")
		return
	}
	meta := map[string]any{
		"streak":        result.Streak,
		"streak_state":  result.StreakState,
		"next_expected": result.NextExpected,
		"satisfied":     result.Satisfied,
		"duplicate":     result.Duplicate,
		"backfilled":    result.Backfilled,
	}
	// A replay carries no record of its own; the committed one is in history.
	if result.Duplicate {
		HandleSuccess(c, http.StatusOK, nil, meta)
		return
	}
	HandleSuccess(c, http.StatusCreated, result.Record, meta)
}

// GetCheckIns defaults to the last seven days, today included, in the
// user's timezone.
func (h *Handler) GetCheckIns(c *gin.Context) {
	userID := c.Param("id")
	today := h.now().In(h.svc.Location(c.Request.Context(), userID))
	from := c.DefaultQuery("from", status.DateKey(today.AddDate(0, 0, -6)))
	to := c.DefaultQuery("to", status.DateKey(today))

	hist, err := h.svc.History(c.Request.Context(), userID, from, to)
	if err != nil {
		HandleError(c, h.logger, err, "Failed to load history")
		return
	}
	HandleSuccess(c, http.StatusOK, hist.Records, map[string]any{
		"from":  hist.From,
		"to":    hist.To,
		"days":  hist.Days,
		"count": len(hist.Records),
	})
}

func (h *Handler) PostSchedule(c *gin.Context) {
	var body ScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		HandleError(c, h.logger, fmt.Errorf("%w: %w", errBadRequest, err), "Invalid JSON")
		return
	}
	if err := validate.Struct(&body); err != nil {
		HandleError(c, h.logger, err, "Schedule validation failed")
		return
	}

	st, err := h.svc.AddSchedule(c.Request.Context(), c.Param("id"), body.Time)
	if err != nil {
		HandleError(c, h.logger, err, "Failed to add schedule")
		return
	}
	HandleSuccess(c, http.StatusCreated, st, nil)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	entry := c.Query("time")
	if entry == "" {
		HandleError(c, h.logger, fmt.Errorf("%w: time query parameter required", errBadRequest), "Schedule validation failed")
		return
	}

	st, err := h.svc.RemoveSchedule(c.Request.Context(), c.Param("id"), entry)
	if err != nil {
		HandleError(c, h.logger, err, "Failed to remove schedule")
		return
	}
	HandleSuccess(c, http.StatusOK, st, nil)
}

func (h *Handler) PutVacation(c *gin.Context) {
	enabled, ok := h.bindToggle(c)
	if !ok {
		return
	}
	st, err := h.svc.SetVacationMode(c.Request.Context(), c.Param("id"), enabled)
	if err != nil {
		HandleError(c, h.logger, err, "Failed to update vacation mode")
		return
	}
	HandleSuccess(c, http.StatusOK, st, nil)
}

func (h *Handler) PutSOS(c *gin.Context) {
	enabled, ok := h.bindToggle(c)
	if !ok {
		return
	}
	st, err := h.svc.SetSOS(c.Request.Context(), c.Param("id"), enabled)
	if err != nil {
		HandleError(c, h.logger, err, "Failed to update SOS")
		return
	}
	HandleSuccess(c, http.StatusOK, st, nil)
}

func (h *Handler) bindToggle(c *gin.Context) (bool, bool) {
	var body ToggleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		HandleError(c, h.logger, fmt.Errorf("%w: %w", errBadRequest, err), "Invalid JSON")
		return false, false
	}
	if err := validate.Struct(&body); err != nil {
		HandleError(c, h.logger, err, "Toggle validation failed")
		return false, false
	}
	return *body.Enabled, true
}

func (h *Handler) PostPush(c *gin.Context) {
	if h.pushes == nil {
		c.JSON(http.StatusServiceUnavailable, NewError(http.StatusServiceUnavailable, "permanent", "notification gate not configured"))
		return
	}
	var body PushRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		HandleError(c, h.logger, fmt.Errorf("%w: %w", errBadRequest, err), "Invalid JSON")
		return
	}
	if err := validate.Struct(&body); err != nil {
		HandleError(c, h.logger, err, "Push validation failed")
		return
	}

	if err := h.pushes.NoteExternalPush(c.Request.Context(), notify.Class(body.Class), body.SubjectID); err != nil {
		HandleError(c, h.logger, err, "Failed to record push")
		return
	}
	if h.reload != nil {
		h.reload()
	}
	HandleSuccess(c, http.StatusAccepted, body, nil)
}
