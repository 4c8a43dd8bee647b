package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/textutil"
	"github.com/gin-gonic/gin"
)

const AjaxPath = "/ajax"

type PageStore interface {
	GetEventBySlug(ctx context.Context, slug string) (event.Event, error)
	ListCities(ctx context.Context) ([]event.City, error)
	LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error)
}

type PagesHandler struct {
	store   PageStore
	nonces  NonceIssuer
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
}

func NewPagesHandler(store PageStore, nonces NonceIssuer, loc *time.Location) *PagesHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PagesHandler{store: store, nonces: nonces, loc: loc, now: time.Now, timeout: 3 * time.Second}
}

// WithClock replaces the clock used to decide whether registration is closed.
func (h *PagesHandler) WithClock(now func() time.Time) *PagesHandler {
	h.now = now
	return h
}

type cityOption struct {
	Slug    string
	Name    string
	Checked bool
}

type searchPage struct {
	PageTitle string
	AjaxURL   string
	Nonce     string
	Text      string
	DateFrom  string
	DateTo    string
	Cities    []cityOption
}

type eventPage struct {
	PageTitle    string
	AjaxURL      string
	ID           int64
	Title        string
	Date         string
	Cities       string
	Count        int
	Limit        int
	HasLimit     bool
	PlacesLeft   int
	IsFull       bool
	IsClosed     bool
	Body         template.HTML
	Description  template.HTML
	ThumbnailURL string
	Nonce        string
}

// SearchPage renders the search form prefilled from the query string, so a
// shared or reloaded URL shows the same filters.
func (h *PagesHandler) SearchPage(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	cities, err := h.store.ListCities(cctx)
	if err != nil {
		h.fail(ctx, err)
		return
	}

	nonce, err := h.nonces.Issue(auth.PurposeSearch)
	if err != nil {
		h.fail(ctx, err)
		return
	}

	selected := textutil.SlugList(ctx.Query("city"))
	options := make([]cityOption, 0, len(cities))
	for _, c := range cities {
		options = append(options, cityOption{
			Slug:    c.Slug,
			Name:    c.Name,
			Checked: slices.Contains(selected, c.Slug),
		})
	}

	ctx.Header("Cache-Control", "no-store")
	ctx.HTML(http.StatusOK, "search.html", searchPage{
		PageTitle: "Events",
		AjaxURL:   AjaxPath,
		Nonce:     nonce,
		Text:      ctx.Query("s_event"),
		DateFrom:  ctx.Query("date_from"),
		DateTo:    ctx.Query("date_to"),
		Cities:    options,
	})
}

// EventPage renders a published event with its registration form.
func (h *PagesHandler) EventPage(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	ev, err := h.store.GetEventBySlug(cctx, ctx.Param("slug"))
	if errors.Is(err, event.ErrNotFound) || (err == nil && !ev.IsPublished()) {
		h.NotFound(ctx)
		return
	}
	if err != nil {
		h.fail(ctx, err)
		return
	}

	regs, err := h.store.LoadRegistrations(cctx, ev.ID)
	if err != nil {
		h.fail(ctx, err)
		return
	}

	view := eventPage{
		PageTitle:    ev.Title,
		AjaxURL:      AjaxPath,
		ID:           ev.ID,
		Title:        ev.Title,
		Date:         event.FormatStart(ev.StartsAt, h.loc),
		Count:        regs.Count(),
		Body:         template.HTML(ev.Body),
		Description:  template.HTML(ev.Description),
		ThumbnailURL: ev.ThumbnailURL,
	}

	names := make([]string, 0, len(ev.Cities))
	for _, c := range ev.Cities {
		names = append(names, c.Name)
	}
	view.Cities = strings.Join(names, ", ")

	if limit, ok := ev.Limit(); ok {
		view.Limit = limit
		view.HasLimit = true
		view.PlacesLeft = max(limit-view.Count, 0)
		view.IsFull = view.Count >= limit
	}

	if start, ok := ev.StartTime(h.loc); ok && start.Before(h.now()) {
		view.IsClosed = true
	}

	if !view.IsFull && !view.IsClosed {
		view.Nonce, err = h.nonces.Issue(auth.PurposeRegistration)
		if err != nil {
			h.fail(ctx, err)
			return
		}
	}

	ctx.Header("Cache-Control", "no-store")
	ctx.HTML(http.StatusOK, "event.html", view)
}

func (h *PagesHandler) NotFound(ctx *gin.Context) {
	ctx.HTML(http.StatusNotFound, "notfound.html", gin.H{"PageTitle": "Page not found"})
}

func (h *PagesHandler) fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.String(http.StatusInternalServerError, "Something went wrong. Please try again later.")
}
