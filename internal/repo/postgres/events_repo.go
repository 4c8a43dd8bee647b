package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/a-szyszlo/event-manager/internal/search"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `e.id, e.slug, e.title, e.body, e.excerpt, e.description, e.status,
	e.starts_at, e.participant_limit, e.thumbnail_url`

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func (r *EventsRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	var status string
	var limit *int32

	err := row.Scan(&e.ID, &e.Slug, &e.Title, &e.Body, &e.Excerpt, &e.Description, &status,
		&e.StartsAt, &limit, &e.ThumbnailURL)
	if err != nil {
		return event.Event{}, err
	}

	e.Status = event.Status(status)
	if limit != nil {
		n := int(*limit)
		e.ParticipantLimit = &n
	}
	return e, nil
}

func (r *EventsRepo) getOne(ctx context.Context, op, where string, arg any) (event.Event, error) {
	var e event.Event

	err := r.observe(op, func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE `+where, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	e.Cities, err = r.citiesOf(ctx, e.ID)
	if err != nil {
		return event.Event{}, err
	}
	return e, nil
}

func (r *EventsRepo) GetEvent(ctx context.Context, id int64) (event.Event, error) {
	return r.getOne(ctx, "events.get", "e.id = $1", id)
}

func (r *EventsRepo) GetEventBySlug(ctx context.Context, slug string) (event.Event, error) {
	return r.getOne(ctx, "events.get_by_slug", "e.slug = $1", slug)
}

func (r *EventsRepo) citiesOf(ctx context.Context, eventID int64) ([]event.City, error) {
	var out []event.City

	err := r.observe("events.cities", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT c.slug, c.name
			FROM event_cities ec
			JOIN cities c ON c.slug = ec.city_slug
			WHERE ec.event_id = $1
			ORDER BY c.name`, eventID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByPos[event.City])
		return err
	})
	return out, err
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func searchWhere(q search.Query) (string, []any) {
	conds := []string{"e.status = 'publish'"}
	var args []any

	argsPosition := 1

	for _, term := range q.Terms {
		p := fmt.Sprintf("$%d", argsPosition)
		conds = append(conds, "(e.title ILIKE "+p+" ESCAPE '\\' OR e.excerpt ILIKE "+p+" ESCAPE '\\' OR e.body ILIKE "+p+" ESCAPE '\\')")
		args = append(args, "%"+escapeLike(term)+"%")
		argsPosition++
	}

	if len(q.CitySlugs) > 0 {
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM event_cities ec WHERE ec.event_id = e.id AND ec.city_slug = ANY($%d))", argsPosition))
		args = append(args, q.CitySlugs)
		argsPosition++
	}

	if q.StartFrom != "" {
		conds = append(conds, fmt.Sprintf("e.starts_at <> '' AND e.starts_at >= $%d", argsPosition))
		args = append(args, q.StartFrom)
		argsPosition++
	}

	if q.StartTo != "" {
		conds = append(conds, fmt.Sprintf("e.starts_at <> '' AND e.starts_at <= $%d", argsPosition))
		args = append(args, q.StartTo)
	}

	return strings.Join(conds, " AND "), args
}

// SearchEvents returns one page of published events plus the total match
// count. The count is a separate query so pages past the end still report it.
func (r *EventsRepo) SearchEvents(ctx context.Context, q search.Query) ([]event.Event, int, error) {
	where, args := searchWhere(q)

	var total int
	err := r.observe("events.search_count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e WHERE `+where, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]event.Event, 0, q.PageSize)
	if q.Offset() >= total {
		return out, total, nil
	}

	n := len(args)
	query := `SELECT ` + eventColumns + ` FROM events e WHERE ` + where +
		fmt.Sprintf(" ORDER BY (e.starts_at = '') ASC, e.starts_at ASC, e.id ASC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, q.PageSize, q.Offset())

	err = r.observe("events.search", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
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

// ListCities returns the city tags attached to at least one published event.
func (r *EventsRepo) ListCities(ctx context.Context) ([]event.City, error) {
	var out []event.City

	err := r.observe("cities.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT DISTINCT c.slug, c.name
			FROM cities c
			JOIN event_cities ec ON ec.city_slug = c.slug
			JOIN events e ON e.id = ec.event_id
			WHERE e.status = 'publish'
			ORDER BY c.name`)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByPos[event.City])
		return err
	})
	return out, err
}

// UpsertEvent creates or updates an event and its city tags in one
// transaction. Registrations are never touched.
func (r *EventsRepo) UpsertEvent(ctx context.Context, req event.UpsertEventRequest) (e event.Event, err error) {
	e = event.NewFromUpsertRequest(req)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var limit *int32
	if e.ParticipantLimit != nil {
		n := int32(*e.ParticipantLimit)
		limit = &n
	}

	err = r.observe("events.upsert", func() error {
		if e.ID == 0 {
			return tx.QueryRow(ctx, `
				INSERT INTO events (slug, title, body, excerpt, description, status, starts_at, participant_limit, thumbnail_url)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
				ON CONFLICT (slug) DO UPDATE SET
					title = EXCLUDED.title, body = EXCLUDED.body, excerpt = EXCLUDED.excerpt,
					description = EXCLUDED.description, status = EXCLUDED.status, starts_at = EXCLUDED.starts_at,
					participant_limit = EXCLUDED.participant_limit, thumbnail_url = EXCLUDED.thumbnail_url,
					updated_at = NOW()
				RETURNING id`,
				e.Slug, e.Title, e.Body, e.Excerpt, e.Description, string(e.Status), e.StartsAt, limit, e.ThumbnailURL,
			).Scan(&e.ID)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO events (id, slug, title, body, excerpt, description, status, starts_at, participant_limit, thumbnail_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET
				slug = EXCLUDED.slug, title = EXCLUDED.title, body = EXCLUDED.body, excerpt = EXCLUDED.excerpt,
				description = EXCLUDED.description, status = EXCLUDED.status, starts_at = EXCLUDED.starts_at,
				participant_limit = EXCLUDED.participant_limit, thumbnail_url = EXCLUDED.thumbnail_url,
				updated_at = NOW()`,
			e.ID, e.Slug, e.Title, e.Body, e.Excerpt, e.Description, string(e.Status), e.StartsAt, limit, e.ThumbnailURL,
		)
		if err != nil {
			return err
		}

		// keep BIGSERIAL ahead of explicitly chosen ids
		_, err = tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('events', 'id'), (SELECT MAX(id) FROM events))`)
		return err
	})
	if err != nil {
		return
	}

	err = r.observe("events.upsert_cities", func() error {
		if _, err := tx.Exec(ctx, `DELETE FROM event_cities WHERE event_id = $1`, e.ID); err != nil {
			return err
		}

		for _, c := range e.Cities {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cities (slug, name) VALUES ($1, $2)
				ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name`, c.Slug, c.Name); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO event_cities (event_id, city_slug) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, e.ID, c.Slug); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}
