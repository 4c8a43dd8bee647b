// Package memory is an in-process content and registration store, used by
// tests and by STORE_DRIVER=memory for local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/search"
)

type regState struct {
	items   []registration.Registration
	version int64
}

type Store struct {
	mu     sync.RWMutex
	events map[int64]event.Event
	regs   map[int64]regState
	nextID int64
}

func NewStore() *Store {
	return &Store{
		events: make(map[int64]event.Event),
		regs:   make(map[int64]regState),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// UpsertEvent creates or replaces an event. A zero ID assigns the next free
// one, or reuses the ID of an existing event with the same slug. The
// registration list is left untouched.
func (s *Store) UpsertEvent(_ context.Context, req event.UpsertEventRequest) (event.Event, error) {
	e := event.NewFromUpsertRequest(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == 0 {
		for id, cur := range s.events {
			if cur.Slug == e.Slug {
				e.ID = id
				break
			}
		}
	}
	if e.ID == 0 {
		e.ID = s.nextID + 1
	}
	if e.ID > s.nextID {
		s.nextID = e.ID
	}

	e.Cities = append([]event.City(nil), e.Cities...)
	s.events[e.ID] = e
	return e, nil
}

func (s *Store) GetEvent(_ context.Context, id int64) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return e, nil
}

func (s *Store) GetEventBySlug(_ context.Context, slug string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.Slug == slug {
			return e, nil
		}
	}
	return event.Event{}, event.ErrNotFound
}

func (s *Store) SearchEvents(_ context.Context, q search.Query) ([]event.Event, int, error) {
	s.mu.RLock()
	matched := make([]event.Event, 0)
	for _, e := range s.events {
		if matches(e, q) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		// events without a start time go last
		if (a.StartsAt == "") != (b.StartsAt == "") {
			return b.StartsAt == ""
		}
		if a.StartsAt != b.StartsAt {
			return a.StartsAt < b.StartsAt
		}
		return a.ID < b.ID
	})

	total := len(matched)
	from := q.Offset()
	if from >= total {
		return []event.Event{}, total, nil
	}
	to := from + q.PageSize
	if to > total {
		to = total
	}
	return matched[from:to], total, nil
}

func matches(e event.Event, q search.Query) bool {
	if !e.IsPublished() {
		return false
	}

	if len(q.Terms) > 0 {
		hay := strings.ToLower(e.Title + "\n" + e.Excerpt + "\n" + e.Body)
		for _, term := range q.Terms {
			if !strings.Contains(hay, strings.ToLower(term)) {
				return false
			}
		}
	}

	if len(q.CitySlugs) > 0 && !hasAnyCity(e, q.CitySlugs) {
		return false
	}

	if q.StartFrom != "" && (e.StartsAt == "" || e.StartsAt < q.StartFrom) {
		return false
	}
	if q.StartTo != "" && (e.StartsAt == "" || e.StartsAt > q.StartTo) {
		return false
	}
	return true
}

func hasAnyCity(e event.Event, slugs []string) bool {
	for _, c := range e.Cities {
		for _, s := range slugs {
			if c.Slug == s {
				return true
			}
		}
	}
	return false
}

// ListCities returns the city tags used by at least one published event,
// ordered by name.
func (s *Store) ListCities(context.Context) ([]event.City, error) {
	s.mu.RLock()
	seen := map[string]event.City{}
	for _, e := range s.events {
		if !e.IsPublished() {
			continue
		}
		for _, c := range e.Cities {
			seen[c.Slug] = c
		}
	}
	s.mu.RUnlock()

	out := make([]event.City, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) LoadRegistrations(_ context.Context, eventID int64) (registration.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return registration.List{}, event.ErrNotFound
	}

	st := s.regs[eventID]
	return registration.List{
		EventID: eventID,
		Items:   append([]registration.Registration(nil), st.items...),
		Version: st.version,
	}, nil
}

// SaveRegistrations replaces the list if it is still at expectedVersion.
func (s *Store) SaveRegistrations(_ context.Context, eventID int64, items []registration.Registration, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return event.ErrNotFound
	}

	st := s.regs[eventID]
	if st.version != expectedVersion {
		return event.ErrVersionConflict
	}

	s.regs[eventID] = regState{
		items:   append([]registration.Registration(nil), items...),
		version: st.version + 1,
	}
	return nil
}
