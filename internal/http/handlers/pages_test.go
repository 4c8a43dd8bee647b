package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/http/handlers"
	"github.com/a-szyszlo/event-manager/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakePageStore struct {
	getBySlugFn func(ctx context.Context, slug string) (event.Event, error)
	citiesFn    func(ctx context.Context) ([]event.City, error)
	loadFn      func(ctx context.Context, eventID int64) (registration.List, error)
}

func (f *fakePageStore) GetEventBySlug(ctx context.Context, slug string) (event.Event, error) {
	if f.getBySlugFn != nil {
		return f.getBySlugFn(ctx, slug)
	}
	return event.Event{}, event.ErrNotFound
}

func (f *fakePageStore) ListCities(ctx context.Context) ([]event.City, error) {
	if f.citiesFn != nil {
		return f.citiesFn(ctx)
	}
	return nil, nil
}

func (f *fakePageStore) LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error) {
	if f.loadFn != nil {
		return f.loadFn(ctx, eventID)
	}
	return registration.List{EventID: eventID}, nil
}

var pagesNow = time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)

func newPagesRouter(t *testing.T, store handlers.PageStore, n handlers.NonceIssuer) *gin.Engine {
	t.Helper()

	tmpl, err := web.Templates()
	require.NoError(t, err)

	h := handlers.NewPagesHandler(store, n, time.UTC).WithClock(func() time.Time { return pagesNow })

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/eventy", h.SearchPage)
	r.GET("/wydarzenia/:slug", h.EventPage)
	r.NoRoute(h.NotFound)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func intPtr(n int) *int { return &n }

func regsOf(n int) registration.List {
	l := registration.List{Version: int64(n)}
	for i := 0; i < n; i++ {
		l.Items = append(l.Items, registration.Registration{Name: "P", Email: strings.Repeat("x", i+1) + "@example.com"})
	}
	return l
}

func TestSearchPage_PrefillsFromQuery(t *testing.T) {
	store := &fakePageStore{
		citiesFn: func(context.Context) ([]event.City, error) {
			return []event.City{{Slug: "krakow", Name: "Kraków"}, {Slug: "lodz", Name: "Łódź"}}, nil
		},
	}
	r := newPagesRouter(t, store, &fakeNonces{})

	w := get(r, "/eventy?s_event=%3Cb%3Ejazz&city=Krak%C3%B3w&date_from=2030-01-01")

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	require.Contains(t, body, `id="search-nonce" value="nonce-event_search"`)
	require.Contains(t, body, `value="krakow" checked`)
	require.NotContains(t, body, `value="lodz" checked`)
	require.Contains(t, body, "Łódź")
	require.Contains(t, body, `value="2030-01-01"`)
	require.Contains(t, body, "&lt;b&gt;jazz")
	require.NotContains(t, body, "<b>jazz")
	require.Contains(t, body, "/static/js/search.js")
}

func TestSearchPage_StoreError(t *testing.T) {
	store := &fakePageStore{
		citiesFn: func(context.Context) ([]event.City, error) { return nil, errors.New("db down") },
	}
	r := newPagesRouter(t, store, &fakeNonces{})

	w := get(r, "/eventy")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "db down")
}

func TestEventPage(t *testing.T) {
	base := event.Event{
		ID:          5,
		Slug:        "warsztaty",
		Title:       "Warsztaty",
		Body:        "<p>Program <strong>dnia</strong></p>",
		Description: "<p>Dodatkowe</p>",
		Status:      event.StatusPublish,
		StartsAt:    "2030-05-16 18:00:00",
		Cities:      []event.City{{Slug: "krakow", Name: "Kraków"}, {Slug: "lodz", Name: "Łódź"}},
	}

	tests := []struct {
		name        string
		mutate      func(e *event.Event)
		regs        registration.List
		wantContain []string
		wantMissing []string
	}{
		{
			name:   "open with limit",
			mutate: func(e *event.Event) { e.ParticipantLimit = intPtr(3) },
			regs:   regsOf(1),
			wantContain: []string{
				`id="event-registration-form"`,
				`name="event_id" value="5"`,
				`name="nonce" value="nonce-event_registration"`,
				`data-places-left="2"`,
				"1 / 3",
				"Places available",
				"16.05.2030, 18:00",
				"Kraków, Łódź",
				"<strong>dnia</strong>",
				"<p>Dodatkowe</p>",
			},
		},
		{
			name:        "unlimited",
			regs:        regsOf(7),
			wantContain: []string{`id="event-registration-form"`, `data-limit="">7<`},
			wantMissing: []string{"data-places-left", " / "},
		},
		{
			name:        "full",
			mutate:      func(e *event.Event) { e.ParticipantLimit = intPtr(2) },
			regs:        regsOf(2),
			wantContain: []string{"Event full", "all places for this event are taken"},
			wantMissing: []string{`id="event-registration-form"`, "nonce-event_registration"},
		},
		{
			name:        "already started",
			mutate:      func(e *event.Event) { e.StartsAt = "2030-02-01 10:00:00" },
			wantContain: []string{"registration closed"},
			wantMissing: []string{`id="event-registration-form"`, "nonce-event_registration"},
		},
		{
			name:        "malformed start stays open",
			mutate:      func(e *event.Event) { e.StartsAt = "soon" },
			wantContain: []string{`id="event-registration-form"`, "soon"},
		},
		{
			name:        "thumbnail",
			mutate:      func(e *event.Event) { e.ThumbnailURL = "https://img.example.org/a.jpg" },
			wantContain: []string{`src="https://img.example.org/a.jpg"`, `loading="lazy"`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := base
			if tc.mutate != nil {
				tc.mutate(&ev)
			}

			store := &fakePageStore{
				getBySlugFn: func(_ context.Context, slug string) (event.Event, error) {
					if slug != ev.Slug {
						return event.Event{}, event.ErrNotFound
					}
					return ev, nil
				},
				loadFn: func(context.Context, int64) (registration.List, error) { return tc.regs, nil },
			}
			r := newPagesRouter(t, store, &fakeNonces{})

			w := get(r, "/wydarzenia/warsztaty")
			require.Equal(t, http.StatusOK, w.Code)

			body := w.Body.String()
			for _, s := range tc.wantContain {
				require.Contains(t, body, s)
			}
			for _, s := range tc.wantMissing {
				require.NotContains(t, body, s)
			}
		})
	}
}

func TestEventPage_NotFound(t *testing.T) {
	store := &fakePageStore{
		getBySlugFn: func(_ context.Context, slug string) (event.Event, error) {
			if slug == "draft" {
				return event.Event{ID: 1, Slug: "draft", Status: event.StatusDraft}, nil
			}
			return event.Event{}, event.ErrNotFound
		},
	}
	r := newPagesRouter(t, store, &fakeNonces{})

	for _, target := range []string{"/wydarzenia/draft", "/wydarzenia/missing", "/nowhere"} {
		w := get(r, target)
		require.Equal(t, http.StatusNotFound, w.Code, target)
		require.Contains(t, w.Body.String(), "Page not found", target)
	}
}

func TestEventPage_NonceFailure(t *testing.T) {
	store := &fakePageStore{
		getBySlugFn: func(context.Context, string) (event.Event, error) {
			return event.Event{ID: 1, Slug: "x", Status: event.StatusPublish}, nil
		},
	}
	n := &fakeNonces{
		issueFn: func(auth.Purpose) (string, error) { return "", errors.New("signing failed") },
	}
	r := newPagesRouter(t, store, n)

	w := get(r, "/wydarzenia/x")

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
