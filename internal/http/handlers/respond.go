package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/postsapi/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	MsgValidationFailed = "Los datos proporcionados no son válidos"
)

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondData(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, gin.H{
		"status": statusSuccess,
		"data":   data,
	})
}

func RespondMessage(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"status":  statusSuccess,
		"message": message,
	})
}

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"status":  statusError,
		"message": message,
	})
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message)
}

func RespondValidation(ctx *gin.Context, fields []FieldError) {
	ctx.JSON(http.StatusUnprocessableEntity, gin.H{
		"status":  statusError,
		"message": MsgValidationFailed,
		"errors":  fields,
	})
}

// RespondInternal logs err and answers 500. The raw error text is only added
// to the body when the ErrorDetails middleware allows it.
func RespondInternal(ctx *gin.Context, message string, err error) {
	slog.Default().ErrorContext(ctx.Request.Context(), message,
		"err", err,
		"request_id", requestIDFrom(ctx),
		"route", ctx.FullPath(),
	)

	body := gin.H{
		"status":  statusError,
		"message": message,
	}

	if expose := ctx.GetBool(middlewares.CtxExposeErrors); expose && err != nil {
		body["error"] = err.Error()
	}

	ctx.JSON(http.StatusInternalServerError, body)
}
