package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/jackc/pgx/v5"
)

// LoadRegistrations reads the registration list stored on the event row
// together with its version.
func (r *EventsRepo) LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error) {
	var raw []byte
	list := registration.List{EventID: eventID}

	err := r.observe("registrations.load", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT registrations, registrations_version
			FROM events
			WHERE id = $1`, eventID).Scan(&raw, &list.Version)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.List{}, event.ErrNotFound
		}
		return registration.List{}, err
	}

	if err := json.Unmarshal(raw, &list.Items); err != nil {
		return registration.List{}, fmt.Errorf("decode registrations of event %d: %w", eventID, err)
	}
	return list, nil
}

// SaveRegistrations writes items only if the stored version still equals
// expectedVersion, bumping it in the same statement.
func (r *EventsRepo) SaveRegistrations(ctx context.Context, eventID int64, items []registration.Registration, expectedVersion int64) error {
	if items == nil {
		items = []registration.Registration{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	var affected int64
	err = r.observe("registrations.save", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE events
			SET registrations = $2,
				registrations_version = registrations_version + 1,
				updated_at = NOW()
			WHERE id = $1 AND registrations_version = $3`,
			eventID, raw, expectedVersion)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}

	if affected == 1 {
		return nil
	}

	var exists bool
	err = r.observe("registrations.save_exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists)
	})
	if err != nil {
		return err
	}
	if !exists {
		return event.ErrNotFound
	}
	return event.ErrVersionConflict
}
