package registration

import (
	"strings"
	"time"
)

// Registration is one entry of an event's registration list. The list is
// an attribute of the event; records have no identity of their own.
type Registration struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
	SourceIP     string    `json:"source_ip"`
}

// List is the stored registration list of one event plus the version it was
// read at. Writers must present the version back to persist a new list.
type List struct {
	EventID int64
	Items   []Registration
	Version int64
}

func (l List) Count() int {
	return len(l.Items)
}

// HasEmail reports whether email (in any case or padding) is already registered.
func (l List) HasEmail(email string) bool {
	want := CanonicalEmail(email)
	for _, r := range l.Items {
		if CanonicalEmail(r.Email) == want {
			return true
		}
	}
	return false
}

// Append returns a copy of the items with r added, leaving l untouched.
func (l List) Append(r Registration) []Registration {
	out := make([]Registration, 0, len(l.Items)+1)
	out = append(out, l.Items...)
	return append(out, r)
}

// CanonicalEmail is the form used both for storage and for uniqueness.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NewRecord(name, email, sourceIP string, now time.Time) Registration {
	return Registration{
		Name:         name,
		Email:        CanonicalEmail(email),
		RegisteredAt: now,
		SourceIP:     sourceIP,
	}
}
