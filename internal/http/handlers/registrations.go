package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/a-szyszlo/event-manager/internal/http/middlewares"
	regsvc "github.com/a-szyszlo/event-manager/internal/registration"
	"github.com/gin-gonic/gin"
)

type RegistrationAdmitter interface {
	Admit(ctx context.Context, req regsvc.Request) (regsvc.Result, error)
}

type RegistrationHandler struct {
	svc     RegistrationAdmitter
	timeout time.Duration
}

func NewRegistrationHandler(svc RegistrationAdmitter) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, timeout: 5 * time.Second}
}

type registerForm struct {
	EventID string `form:"event_id"`
	Name    string `form:"registration_name"`
	Email   string `form:"registration_email"`
}

// parseEventID accepts a positive decimal id; anything else is 0.
func parseEventID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func (h *RegistrationHandler) Register(ctx *gin.Context) {
	var form registerForm

	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Admit(cctx, regsvc.Request{
		EventID:  parseEventID(form.EventID),
		Name:     form.Name,
		Email:    form.Email,
		Nonce:    middlewares.NonceFrom(ctx),
		ClientIP: middlewares.ClientIPFrom(ctx),
	})
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondSuccess(ctx, res)
}
