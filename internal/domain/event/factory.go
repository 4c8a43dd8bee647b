package event

import (
	"strings"
	"time"
)

// UpsertEventRequest is what an editor (or the seed fixture) supplies for one event.
type UpsertEventRequest struct {
	ID               int64  `yaml:"id"`
	Slug             string `yaml:"slug"`
	Title            string `yaml:"title"`
	Body             string `yaml:"body"`
	Excerpt          string `yaml:"excerpt"`
	Description      string `yaml:"description"`
	Status           Status `yaml:"status"`
	StartsAt         string `yaml:"startsAt"`
	ParticipantLimit *int   `yaml:"participantLimit"`
	ThumbnailURL     string `yaml:"thumbnailUrl"`
	Cities           []City `yaml:"cities"`

	// Location is the site zone RFC 3339 start times are converted to.
	Location *time.Location `yaml:"-"`
}

func NewFromUpsertRequest(req UpsertEventRequest) Event {
	status := req.Status
	if !status.IsValid() {
		status = StatusDraft
	}

	return Event{
		ID:               req.ID,
		Slug:             strings.TrimSpace(req.Slug),
		Title:            strings.TrimSpace(req.Title),
		Body:             req.Body,
		Excerpt:          req.Excerpt,
		Description:      req.Description,
		Status:           status,
		StartsAt:         NormalizeStart(req.StartsAt, req.Location),
		ParticipantLimit: req.ParticipantLimit,
		ThumbnailURL:     strings.TrimSpace(req.ThumbnailURL),
		Cities:           req.Cities,
	}
}

// FormatStart renders the start time for visitors. Malformed values are shown
// as stored, empty values yield "".
func FormatStart(raw string, loc *time.Location) string {
	t, ok := ParseStart(raw, loc)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return t.Format("02.01.2006, 15:04")
}
