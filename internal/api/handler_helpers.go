package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
	"github.com/hray3182/lifeline-checkin/internal/logging"
	"github.com/hray3182/lifeline-checkin/internal/notify"
)

// statusFor maps an error kind to the HTTP status it is reported with.
func statusFor(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) || errors.Is(err, notify.ErrInvalidArgument) || errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "invalid_argument"
	}
	kind := checkin.ErrorKind(err)
	switch kind {
	case "invalid_argument":
		return http.StatusBadRequest, kind
	case "not_found":
		return http.StatusNotFound, kind
	case "conflict":
		return http.StatusConflict, kind
	case "transient":
		return http.StatusServiceUnavailable, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

func HandleError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	status, kind := statusFor(err)
	logger = logging.FromContext(c.Request.Context(), logger)
	fields := []zap.Field{zap.String("error_kind", kind), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		logger.Error(msg, fields...)
	} else {
		logger.Info(msg, fields...)
	}
	c.JSON(status, NewError(status, kind, msg+": "+err.Error()))
}

func HandleSuccess(c *gin.Context, status int, data interface{}, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta[requestIDKey] = c.GetString(requestIDKey)
	c.JSON(status, Success(data, meta))
}
