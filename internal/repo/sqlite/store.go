// Package sqlite stores events and their registration lists in a single
// SQLite file through the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/a-szyszlo/event-manager/internal/search"
)

const eventColumns = `e.id, e.slug, e.title, e.body, e.excerpt, e.description, e.status,
	e.starts_at, e.participant_limit, e.thumbnail_url`

type Store struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewStore(db *sql.DB, prom *observability.Prom) *Store {
	return &Store{db: db, prom: prom}
}

func (s *Store) observe(op string, fn func() error) error {
	return s.prom.ObserveDB(op, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (event.Event, error) {
	var e event.Event
	var status string
	var limit sql.NullInt64

	err := row.Scan(&e.ID, &e.Slug, &e.Title, &e.Body, &e.Excerpt, &e.Description, &status,
		&e.StartsAt, &limit, &e.ThumbnailURL)
	if err != nil {
		return event.Event{}, err
	}

	e.Status = event.Status(status)
	if limit.Valid {
		n := int(limit.Int64)
		e.ParticipantLimit = &n
	}
	return e, nil
}

func searchText(e event.Event) string {
	return strings.ToLower(e.Title + "\n" + e.Excerpt + "\n" + e.Body)
}

func (s *Store) getOne(ctx context.Context, op, where string, arg any) (event.Event, error) {
	var e event.Event

	err := s.observe(op, func() error {
		var err error
		e, err = scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events e WHERE `+where, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	e.Cities, err = s.queryCities(ctx, "events.cities", `
		SELECT c.slug, c.name
		FROM event_cities ec
		JOIN cities c ON c.slug = ec.city_slug
		WHERE ec.event_id = ?
		ORDER BY c.name`, e.ID)
	if err != nil {
		return event.Event{}, err
	}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (event.Event, error) {
	return s.getOne(ctx, "events.get", "e.id = ?", id)
}

func (s *Store) GetEventBySlug(ctx context.Context, slug string) (event.Event, error) {
	return s.getOne(ctx, "events.get_by_slug", "e.slug = ?", slug)
}

func (s *Store) queryCities(ctx context.Context, op, query string, args ...any) ([]event.City, error) {
	out := []event.City{}

	err := s.observe(op, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c event.City
			if err := rows.Scan(&c.Slug, &c.Name); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) ListCities(ctx context.Context) ([]event.City, error) {
	return s.queryCities(ctx, "cities.list", `
		SELECT DISTINCT c.slug, c.name
		FROM cities c
		JOIN event_cities ec ON ec.city_slug = c.slug
		JOIN events e ON e.id = ec.event_id
		WHERE e.status = 'publish'
		ORDER BY c.name`)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func searchWhere(q search.Query) (string, []any) {
	conds := []string{"e.status = 'publish'"}
	var args []any

	// search_text is lowercased on write; lower() in SQLite only folds ASCII
	for _, term := range q.Terms {
		conds = append(conds, `e.search_text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(term))+"%")
	}

	if len(q.CitySlugs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(q.CitySlugs)), ",")
		conds = append(conds, "EXISTS (SELECT 1 FROM event_cities ec WHERE ec.event_id = e.id AND ec.city_slug IN ("+marks+"))")
		for _, slug := range q.CitySlugs {
			args = append(args, slug)
		}
	}

	if q.StartFrom != "" {
		conds = append(conds, "e.starts_at <> '' AND e.starts_at >= ?")
		args = append(args, q.StartFrom)
	}
	if q.StartTo != "" {
		conds = append(conds, "e.starts_at <> '' AND e.starts_at <= ?")
		args = append(args, q.StartTo)
	}

	return strings.Join(conds, " AND "), args
}

func (s *Store) SearchEvents(ctx context.Context, q search.Query) ([]event.Event, int, error) {
	where, args := searchWhere(q)

	var total int
	err := s.observe("events.search_count", func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events e WHERE `+where, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]event.Event, 0, q.PageSize)
	if q.Offset() >= total {
		return out, total, nil
	}

	query := `SELECT ` + eventColumns + ` FROM events e WHERE ` + where +
		` ORDER BY (e.starts_at = '') ASC, e.starts_at ASC, e.id ASC LIMIT ? OFFSET ?`
	args = append(args, q.PageSize, q.Offset())

	err = s.observe("events.search", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) UpsertEvent(ctx context.Context, req event.UpsertEventRequest) (e event.Event, err error) {
	e = event.NewFromUpsertRequest(req)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var limit sql.NullInt64
	if e.ParticipantLimit != nil {
		limit = sql.NullInt64{Int64: int64(*e.ParticipantLimit), Valid: true}
	}

	err = s.observe("events.upsert", func() error {
		if e.ID == 0 {
			return tx.QueryRowContext(ctx, `
				INSERT INTO events (slug, title, body, excerpt, description, status, starts_at, participant_limit, thumbnail_url, search_text)
				VALUES (?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT (slug) DO UPDATE SET
					title = excluded.title, body = excluded.body, excerpt = excluded.excerpt,
					description = excluded.description, status = excluded.status, starts_at = excluded.starts_at,
					participant_limit = excluded.participant_limit, thumbnail_url = excluded.thumbnail_url,
					search_text = excluded.search_text, updated_at = CURRENT_TIMESTAMP
				RETURNING id`,
				e.Slug, e.Title, e.Body, e.Excerpt, e.Description, string(e.Status), e.StartsAt, limit, e.ThumbnailURL, searchText(e),
			).Scan(&e.ID)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, slug, title, body, excerpt, description, status, starts_at, participant_limit, thumbnail_url, search_text)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT (id) DO UPDATE SET
				slug = excluded.slug, title = excluded.title, body = excluded.body, excerpt = excluded.excerpt,
				description = excluded.description, status = excluded.status, starts_at = excluded.starts_at,
				participant_limit = excluded.participant_limit, thumbnail_url = excluded.thumbnail_url,
				search_text = excluded.search_text, updated_at = CURRENT_TIMESTAMP`,
			e.ID, e.Slug, e.Title, e.Body, e.Excerpt, e.Description, string(e.Status), e.StartsAt, limit, e.ThumbnailURL, searchText(e),
		)
		return err
	})
	if err != nil {
		return
	}

	err = s.observe("events.upsert_cities", func() error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_cities WHERE event_id = ?`, e.ID); err != nil {
			return err
		}
		for _, c := range e.Cities {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cities (slug, name) VALUES (?, ?)
				ON CONFLICT (slug) DO UPDATE SET name = excluded.name`, c.Slug, c.Name); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO event_cities (event_id, city_slug) VALUES (?, ?)
				ON CONFLICT DO NOTHING`, e.ID, c.Slug); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return
	}

	err = tx.Commit()
	return
}

func (s *Store) LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error) {
	var raw string
	list := registration.List{EventID: eventID}

	err := s.observe("registrations.load", func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT registrations, registrations_version
			FROM events
			WHERE id = ?`, eventID).Scan(&raw, &list.Version)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registration.List{}, event.ErrNotFound
		}
		return registration.List{}, err
	}

	if err := json.Unmarshal([]byte(raw), &list.Items); err != nil {
		return registration.List{}, fmt.Errorf("decode registrations of event %d: %w", eventID, err)
	}
	return list, nil
}

func (s *Store) SaveRegistrations(ctx context.Context, eventID int64, items []registration.Registration, expectedVersion int64) error {
	if items == nil {
		items = []registration.Registration{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	var affected int64
	err = s.observe("registrations.save", func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE events
			SET registrations = ?,
				registrations_version = registrations_version + 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND registrations_version = ?`,
			string(raw), eventID, expectedVersion)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	err = s.observe("registrations.save_exists", func() error {
		return s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = ?)`, eventID).Scan(&exists)
	})
	if err != nil {
		return err
	}
	if !exists {
		return event.ErrNotFound
	}
	return event.ErrVersionConflict
}
