package search

import (
	"strings"
	"testing"
	"time"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/stretchr/testify/require"
)

func TestRender_ItemsAndPagination(t *testing.T) {
	r := NewRenderer(20, time.UTC)

	events := []event.Event{
		{
			ID: 1, Slug: "jazz", Title: "Jazz <Night>", StartsAt: "2030-05-02 20:00:00",
			Excerpt:      "<p>A long evening of <b>improvised</b> music</p>",
			ThumbnailURL: "https://example.com/jazz.jpg",
		},
		{ID: 2, Slug: "rock", Title: "Rock", Description: "<p>Short</p>"},
	}

	html, err := r.Render(events, 2, 3)
	require.NoError(t, err)

	require.Contains(t, html, `class="event-search-results"`)
	require.Equal(t, 2, strings.Count(html, `class="event-result-item"`))
	require.Contains(t, html, `href="/wydarzenia/jazz"`)
	require.Contains(t, html, "Jazz &lt;Night&gt;")
	require.NotContains(t, html, "<Night>")
	require.Contains(t, html, `<p class="event-result-date">02.05.2030, 20:00</p>`)
	require.Contains(t, html, "A long evening of im…")
	require.Contains(t, html, `<p class="event-result-excerpt">Short</p>`)
	require.Contains(t, html, `src="https://example.com/jazz.jpg"`)
	require.Contains(t, html, `loading="lazy"`)

	require.Contains(t, html, `class="event-search-pagination"`)
	require.Contains(t, html, `class="page-btn" data-page="1"`)
	require.Contains(t, html, `class="page-btn active" data-page="2"`)
	require.Contains(t, html, `class="page-btn" data-page="3"`)
}

func TestRender_NoPaginationForSinglePage(t *testing.T) {
	r := NewRenderer(0, time.UTC)

	html, err := r.Render([]event.Event{{Slug: "a", Title: "A"}}, 1, 1)
	require.NoError(t, err)
	require.NotContains(t, html, "event-search-pagination")
	require.NotContains(t, html, "event-result-date")
}

func TestRender_EmptyState(t *testing.T) {
	r := NewRenderer(0, time.UTC)

	html, err := r.Render(nil, 4, 2)
	require.NoError(t, err)
	require.Contains(t, html, `class="event-search-no-results"`)
	require.NotContains(t, html, "event-result-item")
	require.NotContains(t, html, "page-btn")
}

func TestRender_UnsafeValuesAreNeutralised(t *testing.T) {
	r := NewRenderer(0, time.UTC)

	html, err := r.Render([]event.Event{{
		Slug:         `x" onclick="alert(1)`,
		Title:        `<img src=x onerror=alert(1)>`,
		ThumbnailURL: "javascript:alert(1)",
		Excerpt:      "<script>alert(1)</script>safe",
	}}, 1, 1)
	require.NoError(t, err)

	require.NotContains(t, html, "<img src=x")
	require.NotContains(t, html, "javascript:")
	require.NotContains(t, html, `" onclick="`)
	require.NotContains(t, html, "<script>")
	require.Contains(t, html, ">safe</p>")
}

func TestItem_MalformedStartShownVerbatim(t *testing.T) {
	r := NewRenderer(0, time.UTC)

	item := r.Item(event.Event{Slug: "a", StartsAt: "soon"})
	require.Equal(t, "soon", item.Date)
}
