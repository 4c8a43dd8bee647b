// Command seed loads events and their city tags from a YAML fixture into the
// configured store. Running it twice updates the same events by slug.
package main

import (
	"bytes"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/a-szyszlo/event-manager/internal/config"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/a-szyszlo/event-manager/internal/repo"
	"github.com/a-szyszlo/event-manager/internal/textutil"
	"gopkg.in/yaml.v3"
)

//go:embed events.yaml
var defaultFixture []byte

type fixture struct {
	Events []event.UpsertEventRequest `yaml:"events"`
}

func main() {
	file := flag.String("file", "", "fixture file (defaults to the bundled sample events)")
	flag.Parse()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	if err := run(cfg, log, *file); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger, file string) error {
	raw := defaultFixture
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		raw = b
	}

	reqs, err := parseFixture(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	ctx, cancel := config.WithTimeout(time.Minute)
	defer cancel()

	store, closeStore, err := repo.Open(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer closeStore()

	loc := cfg.Location()
	for _, req := range reqs {
		req.Location = loc
		ev, err := store.UpsertEvent(ctx, req)
		if err != nil {
			return fmt.Errorf("upsert %q: %w", req.Slug, err)
		}
		log.Info("event seeded", "id", ev.ID, "slug", ev.Slug, "status", ev.Status)
	}

	log.Info("seed complete", "events", len(reqs))
	return nil
}

// parseFixture decodes the fixture and fills in slugs editors left out.
func parseFixture(r io.Reader) ([]event.UpsertEventRequest, error) {
	var f fixture

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	for i := range f.Events {
		e := &f.Events[i]
		if e.Title == "" {
			return nil, fmt.Errorf("event #%d has no title", i+1)
		}
		if e.Slug == "" {
			e.Slug = textutil.Slugify(e.Title)
		}
		for j := range e.Cities {
			if e.Cities[j].Slug == "" {
				e.Cities[j].Slug = textutil.Slugify(e.Cities[j].Name)
			}
		}
	}

	return f.Events, nil
}
