// Package storetest holds behaviour checks every content store backend must
// pass. Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/search"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type Store interface {
	UpsertEvent(ctx context.Context, req event.UpsertEventRequest) (event.Event, error)
	GetEvent(ctx context.Context, id int64) (event.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (event.Event, error)
	SearchEvents(ctx context.Context, q search.Query) ([]event.Event, int, error)
	ListCities(ctx context.Context) ([]event.City, error)
	LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error)
	SaveRegistrations(ctx context.Context, eventID int64, items []registration.Registration, expectedVersion int64) error
}

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("event round trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("search", func(t *testing.T) { testSearch(t, newStore(t)) })
	t.Run("start time layouts", func(t *testing.T) { testStartLayouts(t, newStore(t)) })
	t.Run("registrations versioning", func(t *testing.T) { testVersioning(t, newStore(t)) })
	t.Run("concurrent saves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
}

func intPtr(n int) *int { return &n }

func testRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.UpsertEvent(ctx, event.UpsertEventRequest{
		Slug:             "koncert-jazzowy",
		Title:            "Koncert jazzowy",
		Body:             "<p>Wieczór z muzyką</p>",
		Excerpt:          "Krótko",
		Status:           event.StatusPublish,
		StartsAt:         "2030-06-01 19:00:00",
		ParticipantLimit: intPtr(20),
		ThumbnailURL:     "https://example.com/a.jpg",
		Cities:           []event.City{{Slug: "krakow", Name: "Kraków"}},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := s.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, got); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}

	bySlug, err := s.GetEventBySlug(ctx, "koncert-jazzowy")
	require.NoError(t, err)
	require.Equal(t, created.ID, bySlug.ID)

	// same slug, no id: updates in place
	updated, err := s.UpsertEvent(ctx, event.UpsertEventRequest{
		Slug:   "koncert-jazzowy",
		Title:  "Koncert jazzowy II",
		Status: event.StatusPublish,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)

	got, err = s.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Koncert jazzowy II", got.Title)
	require.Nil(t, got.ParticipantLimit)
	require.Empty(t, got.Cities)

	_, err = s.GetEvent(ctx, created.ID+1000)
	require.ErrorIs(t, err, event.ErrNotFound)
	_, err = s.GetEventBySlug(ctx, "missing")
	require.ErrorIs(t, err, event.ErrNotFound)
}

func testSearch(t *testing.T, s Store) {
	ctx := context.Background()
	krakow := event.City{Slug: "krakow", Name: "Kraków"}
	lodz := event.City{Slug: "lodz", Name: "Łódź"}

	reqs := []event.UpsertEventRequest{
		{ID: 1, Slug: "jazz", Title: "Jazz w Piwnicy", Status: event.StatusPublish, StartsAt: "2030-05-02 20:00:00", Cities: []event.City{krakow}},
		{ID: 2, Slug: "zlot", Title: "Zlot", Body: "<p>Żółty JAZZ 100%</p>", Status: event.StatusPublish, StartsAt: "2030-05-01 18:00:00", Cities: []event.City{lodz}},
		{ID: 3, Slug: "szkic", Title: "Jazz szkic", Status: event.StatusDraft, StartsAt: "2030-05-01 10:00:00", Cities: []event.City{krakow}},
		{ID: 4, Slug: "bez-daty", Title: "Bez daty", Status: event.StatusPublish},
	}
	for i := 5; i <= 16; i++ {
		reqs = append(reqs, event.UpsertEventRequest{
			ID: int64(i), Slug: fmt.Sprintf("warsztat-%d", i), Title: "Warsztat", Status: event.StatusPublish,
			StartsAt: fmt.Sprintf("2031-01-%02d 10:00:00", i),
		})
	}
	for _, r := range reqs {
		_, err := s.UpsertEvent(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter search.Filter
		want   []int64
		total  int
	}{
		{"case-insensitive text incl. diacritics", search.Filter{Text: "żółty"}, []int64{2}, 1},
		{"terms across title and body", search.Filter{Text: "jazz"}, []int64{2, 1}, 2},
		{"like wildcards are literal", search.Filter{Text: "100%"}, []int64{2}, 1},
		{"underscore is literal", search.Filter{Text: "jazz_"}, []int64{}, 0},
		{"cities are or-ed", search.Filter{Cities: "Łódź,krakow"}, []int64{2, 1}, 2},
		{"inclusive day bounds", search.Filter{DateFrom: "2030-05-02", DateTo: "2030-05-02"}, []int64{1}, 1},
		{"first page of many", search.Filter{Text: "warsztat"}, []int64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, 12},
		{"second page", search.Filter{Text: "warsztat", Page: "2"}, []int64{15, 16}, 12},
		{"page past the end", search.Filter{Text: "warsztat", Page: "3"}, []int64{}, 12},
		{"undated events last", search.Filter{Text: "bez"}, []int64{4}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := search.Build(tt.filter)
			require.NoError(t, err)

			got, total, err := s.SearchEvents(ctx, q)
			require.NoError(t, err)
			require.Equal(t, tt.total, total)

			ids := make([]int64, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	cities, err := s.ListCities(ctx)
	require.NoError(t, err)
	require.Equal(t, []event.City{krakow, lodz}, cities)
}

func testStartLayouts(t *testing.T, s Store) {
	ctx := context.Background()

	reqs := []event.UpsertEventRequest{
		{ID: 1, Slug: "tylko-data", Title: "Tylko data", Status: event.StatusPublish, StartsAt: "2032-06-01"},
		{ID: 2, Slug: "z-literka-t", Title: "Z literką T", Status: event.StatusPublish, StartsAt: "2032-06-01T10:00:00"},
		{ID: 3, Slug: "bez-sekund", Title: "Bez sekund", Status: event.StatusPublish, StartsAt: "2032-06-01 10:30"},
		{ID: 4, Slug: "ze-strefa", Title: "Ze strefą", Status: event.StatusPublish, StartsAt: "2032-06-01T09:00:00+02:00", Location: time.UTC},
		{ID: 5, Slug: "nastepny-dzien", Title: "Następny dzień", Status: event.StatusPublish, StartsAt: "2032-06-02T00:00:00"},
	}
	for _, r := range reqs {
		_, err := s.UpsertEvent(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.GetEvent(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "2032-06-01 10:00:00", got.StartsAt)

	q, err := search.Build(search.Filter{DateFrom: "2032-06-01", DateTo: "2032-06-01"})
	require.NoError(t, err)

	found, total, err := s.SearchEvents(ctx, q)
	require.NoError(t, err)
	require.Equal(t, 4, total)

	ids := make([]int64, 0, len(found))
	for _, e := range found {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]int64{1, 4, 2, 3}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func testVersioning(t *testing.T, s Store) {
	ctx := context.Background()

	ev, err := s.UpsertEvent(ctx, event.UpsertEventRequest{Slug: "v", Title: "V", Status: event.StatusPublish})
	require.NoError(t, err)

	list, err := s.LoadRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	require.Zero(t, list.Count())

	now := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := registration.NewRecord("Jan Kowalski", "Jan@Example.com ", "10.0.0.1", now)
	require.NoError(t, s.SaveRegistrations(ctx, ev.ID, list.Append(rec), list.Version))

	err = s.SaveRegistrations(ctx, ev.ID, list.Append(rec), list.Version)
	require.ErrorIs(t, err, event.ErrVersionConflict)

	after, err := s.LoadRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, list.Version+1, after.Version)
	require.Len(t, after.Items, 1)
	require.Equal(t, "jan@example.com", after.Items[0].Email)
	require.True(t, now.Equal(after.Items[0].RegisteredAt))
	require.Equal(t, "10.0.0.1", after.Items[0].SourceIP)

	// editing the event keeps its registrations
	_, err = s.UpsertEvent(ctx, event.UpsertEventRequest{ID: ev.ID, Slug: "v", Title: "V2", Status: event.StatusPublish})
	require.NoError(t, err)
	after, err = s.LoadRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)

	_, err = s.LoadRegistrations(ctx, ev.ID+1000)
	require.ErrorIs(t, err, event.ErrNotFound)
	require.ErrorIs(t, s.SaveRegistrations(ctx, ev.ID+1000, nil, 0), event.ErrNotFound)
}

// Writers racing on the same version: exactly one wins.
func testConcurrentSaves(t *testing.T, s Store) {
	ctx := context.Background()

	ev, err := s.UpsertEvent(ctx, event.UpsertEventRequest{Slug: "race", Title: "Race", Status: event.StatusPublish})
	require.NoError(t, err)

	list, err := s.LoadRegistrations(ctx, ev.ID)
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := registration.NewRecord("User", fmt.Sprintf("u%d@example.com", i), "", time.Now())
			err := s.SaveRegistrations(ctx, ev.ID, list.Append(rec), list.Version)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case err == event.ErrVersionConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, writers-1, conflicts)

	after, err := s.LoadRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
}
