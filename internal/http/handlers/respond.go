package handlers

import (
	"net/http"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/a-szyszlo/event-manager/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// ErrorData is the data member of a failed ajax response.
type ErrorData struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

const msgInternal = "Something went wrong. Please try again."

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondSuccess writes {success:true, data:...} with status 200.
func RespondSuccess(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func RespondError(ctx *gin.Context, status int, code, message string, details any) {
	ctx.JSON(status, gin.H{
		"success": false,
		"data": ErrorData{
			Message:   message,
			Code:      code,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, code, message string, details any) {
	RespondError(ctx, http.StatusBadRequest, code, message, details)
}

func RespondInternal(ctx *gin.Context) {
	RespondError(ctx, http.StatusInternalServerError, apperr.CodeStorage, msgInternal, nil)
}

// RespondAppError maps the error taxonomy onto status codes. Anything that is
// not an *apperr.Error is reported as an internal error without detail.
func RespondAppError(ctx *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		_ = ctx.Error(err)
		RespondInternal(ctx)
		return
	}

	if appErr.Kind == apperr.KindStorage || appErr.Kind == apperr.KindUnknown {
		_ = ctx.Error(err)
	}

	RespondError(ctx, appErr.Kind.HTTPStatus(), appErr.Code, appErr.Message, appErr.Details)
}
