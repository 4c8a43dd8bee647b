// Package repo selects the configured store backend.
package repo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a-szyszlo/event-manager/internal/config"
	"github.com/a-szyszlo/event-manager/internal/db"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/a-szyszlo/event-manager/internal/repo/memory"
	"github.com/a-szyszlo/event-manager/internal/repo/postgres"
	"github.com/a-szyszlo/event-manager/internal/repo/sqlite"
	"github.com/a-szyszlo/event-manager/internal/search"
)

// Store is the full surface shared by every backend.
type Store interface {
	Ping(ctx context.Context) error
	UpsertEvent(ctx context.Context, req event.UpsertEventRequest) (event.Event, error)
	GetEvent(ctx context.Context, id int64) (event.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (event.Event, error)
	SearchEvents(ctx context.Context, q search.Query) ([]event.Event, int, error)
	ListCities(ctx context.Context) ([]event.City, error)
	LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error)
	SaveRegistrations(ctx context.Context, eventID int64, items []registration.Registration, expectedVersion int64) error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.EventsRepo)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open connects to the backend named by cfg.StoreDriver and makes sure its
// schema exists. The returned close func releases the connection.
func Open(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil

	case "sqlite":
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Info("sqlite store ready", "path", cfg.SQLitePath)
		return sqlite.NewStore(sqlDB, prom), func() { _ = sqlDB.Close() }, nil

	case "postgres", "":
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("postgres store ready")
		return postgres.NewEventsRepo(pool, prom), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
