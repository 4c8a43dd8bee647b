package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/a-szyszlo/event-manager/internal/cache"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const msgSearchFailed = "Search is temporarily unavailable. Please try again."

// sharedQueryTimeout bounds a store query that several callers may be
// waiting on. It is detached from any single caller's context.
const sharedQueryTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/a-szyszlo/event-manager/internal/search")

// Store returns one page of published events matching q, ordered by start
// time, and the total number of matches regardless of the page.
type Store interface {
	SearchEvents(ctx context.Context, q Query) ([]event.Event, int, error)
}

type Response struct {
	HTML        string `json:"html"`
	Total       int    `json:"total"`
	MaxPages    int    `json:"max_pages"`
	CurrentPage int    `json:"current_page"`
}

type Service struct {
	store    Store
	cache    cache.Store
	renderer *Renderer
	log      *slog.Logger
	prom     *observability.Prom
	group    singleflight.Group
}

func NewService(store Store, c cache.Store, renderer *Renderer, log *slog.Logger, prom *observability.Prom) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		cache:    c,
		renderer: renderer,
		log:      log,
		prom:     prom,
	}
}

func (s *Service) Search(ctx context.Context, f Filter) (Response, error) {
	ctx, span := tracer.Start(ctx, "search.query")
	defer span.End()

	q, err := Build(f)
	if err != nil {
		s.count("invalid")
		span.SetStatus(codes.Error, "invalid filter")
		return Response{}, err
	}

	key := q.Key()
	span.SetAttributes(
		attribute.Int("search.page", q.Page),
		attribute.Int("search.cities", len(q.CitySlugs)),
	)

	if res, ok := s.cached(ctx, key); ok {
		s.count("ok")
		return res, nil
	}

	res, shared, err := s.shared(ctx, q, key)
	if err != nil {
		s.count("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return Response{}, err
	}
	span.SetAttributes(attribute.Bool("search.shared", shared))

	s.count("ok")
	return res, nil
}

// shared runs the query once per key for all concurrent callers. Each caller
// stops waiting when its own ctx ends; the query itself keeps going so the
// others still get a result.
func (s *Service) shared(ctx context.Context, q Query, key string) (Response, bool, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedQueryTimeout)
		defer cancel()
		return s.run(runCtx, q, key)
	})

	select {
	case <-ctx.Done():
		return Response{}, false, apperr.Storage(msgSearchFailed, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return Response{}, r.Shared, r.Err
		}
		return r.Val.(Response), r.Shared, nil
	}
}

func (s *Service) run(ctx context.Context, q Query, key string) (Response, error) {
	events, total, err := s.store.SearchEvents(ctx, q)
	if err != nil {
		s.log.ErrorContext(ctx, "search query failed", "err", err, "query", q.Key())
		return Response{}, apperr.Storage(msgSearchFailed, err)
	}

	maxPages := q.TotalPages(total)

	html, err := s.renderer.Render(events, q.Page, maxPages)
	if err != nil {
		s.log.ErrorContext(ctx, "search render failed", "err", err)
		return Response{}, apperr.Storage(msgSearchFailed, err)
	}

	res := Response{
		HTML:        html,
		Total:       total,
		MaxPages:    maxPages,
		CurrentPage: q.Page,
	}

	if b, err := json.Marshal(res); err == nil {
		if err := s.cache.Set(ctx, key, b); err != nil {
			s.log.WarnContext(ctx, "search cache set failed", "err", err)
		}
	}

	return res, nil
}

func (s *Service) cached(ctx context.Context, key string) (Response, bool) {
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "search cache get failed", "err", err)
		return Response{}, false
	}

	if s.prom != nil {
		result := "miss"
		if ok {
			result = "hit"
		}
		s.prom.SearchCache.WithLabelValues(result).Inc()
	}
	if !ok {
		return Response{}, false
	}

	var res Response
	if err := json.Unmarshal(b, &res); err != nil {
		return Response{}, false
	}
	return res, true
}

func (s *Service) count(result string) {
	if s.prom != nil {
		s.prom.SearchRequests.WithLabelValues(result).Inc()
	}
}
