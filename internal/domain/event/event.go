package event

import (
	"errors"
	"strings"
	"time"
)

// StartLayout is the wall-clock layout editors store start times in.
// Values are interpreted in the site's time zone.
const StartLayout = "2006-01-02 15:04:05"

type Status string

const (
	StatusPublish Status = "publish"
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusPrivate Status = "private"
	StatusTrash   Status = "trash"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPublish, StatusDraft, StatusPending, StatusPrivate, StatusTrash:
		return true
	default:
		return false
	}
}

type City struct {
	Slug string `json:"slug" yaml:"slug"`
	Name string `json:"name" yaml:"name"`
}

type Event struct {
	ID               int64  `json:"id"`
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	Body             string `json:"body,omitempty"`
	Excerpt          string `json:"excerpt,omitempty"`
	Description      string `json:"description,omitempty"`
	Status           Status `json:"status"`
	StartsAt         string `json:"startsAt,omitempty"`
	ParticipantLimit *int   `json:"participantLimit,omitempty"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
	Cities           []City `json:"cities,omitempty"`
}

var (
	ErrNotFound        = errors.New("event not found")
	ErrVersionConflict = errors.New("registrations changed since they were loaded")
)

func (e Event) IsPublished() bool {
	return e.Status == StatusPublish
}

// Limit returns the participant limit and whether one applies.
// A missing or non-positive limit means the event is unlimited.
func (e Event) Limit() (int, bool) {
	if e.ParticipantLimit == nil || *e.ParticipantLimit <= 0 {
		return 0, false
	}
	return *e.ParticipantLimit, true
}

// StartTime parses StartsAt in loc. ok is false when the value is empty or
// malformed; callers treat that as "no start time".
func (e Event) StartTime(loc *time.Location) (t time.Time, ok bool) {
	return ParseStart(e.StartsAt, loc)
}

// NormalizeStart rewrites any accepted start time layout to StartLayout so
// stored values compare correctly as text. Offsets are converted to loc
// (UTC when nil). Empty or malformed values are returned trimmed.
func NormalizeStart(raw string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t, ok := ParseStart(raw, loc)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return t.Format(StartLayout)
}

func ParseStart(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range []string{StartLayout, "2006-01-02 15:04", "2006-01-02T15:04:05", "2006-01-02"} {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, true
		}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(loc), true
}
