package handlers

import (
	"net/http"

	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/gin-gonic/gin"
)

// Action names understood by the ajax endpoint.
const (
	ActionRegister    = "register_event"
	ActionSearch      = "event_search_ajax"
	ActionSearchNonce = "event_search_nonce"
)

// AjaxHandler serves every action on one endpoint and routes on the "action"
// field. Each action owns a chain; a chain stops at the first handler that
// aborts, so guards such as nonce checks must not call Next.
type AjaxHandler struct {
	actions map[string][]gin.HandlerFunc
}

func NewAjaxHandler() *AjaxHandler {
	return &AjaxHandler{actions: make(map[string][]gin.HandlerFunc)}
}

func (h *AjaxHandler) Handle(action string, chain ...gin.HandlerFunc) {
	h.actions[action] = chain
}

func (h *AjaxHandler) Dispatch(ctx *gin.Context) {
	action := ctx.PostForm("action")
	if action == "" {
		action = ctx.Query("action")
	}

	chain, ok := h.actions[action]
	if !ok {
		ctx.Set(observability.ActionKey, "unknown")
		RespondError(ctx, http.StatusBadRequest, "unknown_action", "Unknown action.", nil)
		return
	}

	ctx.Set(observability.ActionKey, action)

	for _, fn := range chain {
		fn(ctx)
		if ctx.IsAborted() {
			return
		}
	}
}
