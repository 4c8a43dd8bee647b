package handlers

import (
	"context"
	"time"

	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/search"
	"github.com/gin-gonic/gin"
)

type Searcher interface {
	Search(ctx context.Context, f search.Filter) (search.Response, error)
}

type NonceIssuer interface {
	Issue(purpose auth.Purpose) (string, error)
}

type SearchHandler struct {
	svc     Searcher
	nonces  NonceIssuer
	timeout time.Duration
}

func NewSearchHandler(svc Searcher, nonces NonceIssuer) *SearchHandler {
	return &SearchHandler{svc: svc, nonces: nonces, timeout: 3 * time.Second}
}

type searchForm struct {
	Text     string `form:"s_event" binding:"max=200"`
	City     string `form:"city" binding:"max=1000"`
	DateFrom string `form:"date_from" binding:"max=10"`
	DateTo   string `form:"date_to" binding:"max=10"`
	Paged    string `form:"paged" binding:"max=10"`
}

// Search expects the nonce to be checked by middleware in front of it.
func (h *SearchHandler) Search(ctx *gin.Context) {
	var form searchForm

	if !BindForm(ctx, &form) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Search(cctx, search.Filter{
		Text:     form.Text,
		Cities:   form.City,
		DateFrom: form.DateFrom,
		DateTo:   form.DateTo,
		Page:     form.Paged,
	})
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondSuccess(ctx, res)
}

// Nonce issues a fresh search token, used by the client after its token
// was rejected.
func (h *SearchHandler) Nonce(ctx *gin.Context) {
	nonce, err := h.nonces.Issue(auth.PurposeSearch)
	if err != nil {
		_ = ctx.Error(err)
		RespondInternal(ctx)
		return
	}

	ctx.Header("Cache-Control", "no-store")
	RespondSuccess(ctx, gin.H{"nonce": nonce})
}
