package search

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/textutil"
)

const DefaultExcerptLength = 160

const fragmentTmpl = `{{if .Items}}<div class="event-search-results">
{{- range .Items}}
<article class="event-result-item">
{{- if .ThumbnailURL}}
<a class="event-result-thumb" href="{{.URL}}"><img src="{{.ThumbnailURL}}" alt="{{.Title}}" loading="lazy"></a>
{{- end}}
<div class="event-result-content">
<h3 class="event-result-title"><a href="{{.URL}}">{{.Title}}</a></h3>
{{- if .Date}}
<p class="event-result-date">{{.Date}}</p>
{{- end}}
{{- if .Excerpt}}
<p class="event-result-excerpt">{{.Excerpt}}</p>
{{- end}}
</div>
</article>
{{- end}}
</div>
{{- if gt .TotalPages 1}}
<nav class="event-search-pagination">
{{- range .Pages}}
<button type="button" class="page-btn{{if eq . $.CurrentPage}} active{{end}}" data-page="{{.}}">{{.}}</button>
{{- end}}
</nav>
{{- end}}
{{- else}}<p class="event-search-no-results">No events match your search.</p>{{end}}`

// ResultItem is the view model of one search hit.
type ResultItem struct {
	Title        string
	URL          string
	Date         string
	Excerpt      string
	ThumbnailURL string
}

type fragment struct {
	Items       []ResultItem
	CurrentPage int
	TotalPages  int
	Pages       []int
}

type Renderer struct {
	tmpl       *template.Template
	excerptLen int
	loc        *time.Location
	eventPath  string
}

func NewRenderer(excerptLen int, loc *time.Location) *Renderer {
	if excerptLen <= 0 {
		excerptLen = DefaultExcerptLength
	}
	if loc == nil {
		loc = time.Local
	}

	return &Renderer{
		tmpl:       template.Must(template.New("results").Parse(fragmentTmpl)),
		excerptLen: excerptLen,
		loc:        loc,
		eventPath:  "/wydarzenia/",
	}
}

// Item builds the view model for ev.
func (r *Renderer) Item(ev event.Event) ResultItem {
	summary := ev.Excerpt
	if strings.TrimSpace(textutil.StripTags(summary)) == "" {
		summary = ev.Description
	}

	return ResultItem{
		Title:        ev.Title,
		URL:          r.eventPath + ev.Slug,
		Date:         event.FormatStart(ev.StartsAt, r.loc),
		Excerpt:      textutil.Excerpt(summary, r.excerptLen),
		ThumbnailURL: ev.ThumbnailURL,
	}
}

// Render produces the results fragment. Pagination is only emitted when
// there is more than one page; no events yields the empty-state fragment.
func (r *Renderer) Render(events []event.Event, page, totalPages int) (string, error) {
	f := fragment{
		Items:       make([]ResultItem, 0, len(events)),
		CurrentPage: page,
		TotalPages:  totalPages,
	}
	for _, ev := range events {
		f.Items = append(f.Items, r.Item(ev))
	}
	if totalPages > 1 {
		f.Pages = make([]int, totalPages)
		for i := range f.Pages {
			f.Pages[i] = i + 1
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}
