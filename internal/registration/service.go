package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/a-szyszlo/event-manager/internal/registration")

// Store is the slice of the content store admission needs. SaveRegistrations
// must fail with event.ErrVersionConflict when the list changed after it was
// loaded at expectedVersion.
type Store interface {
	GetEvent(ctx context.Context, id int64) (event.Event, error)
	LoadRegistrations(ctx context.Context, eventID int64) (registration.List, error)
	SaveRegistrations(ctx context.Context, eventID int64, items []registration.Registration, expectedVersion int64) error
}

type NonceVerifier interface {
	Verify(raw string, purpose auth.Purpose) error
}

// Request is the registration form, parsed once at the boundary.
type Request struct {
	EventID  int64
	Name     string
	Email    string
	Nonce    string
	ClientIP string
}

type Result struct {
	Message        string `json:"message"`
	RegisteredName string `json:"registered_name"`
	CurrentCount   int    `json:"current_count"`
	PlacesLeft     *int   `json:"places_left"`
	IsFull         bool   `json:"is_full"`
}

type Config struct {
	Location    *time.Location
	MaxAttempts int
	Now         func() time.Time
}

type Service struct {
	store  Store
	nonces NonceVerifier
	log    *slog.Logger
	prom   *observability.Prom
	cfg    Config
}

func NewService(store Store, nonces NonceVerifier, log *slog.Logger, prom *observability.Prom, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store:  store,
		nonces: nonces,
		log:    log,
		prom:   prom,
		cfg:    cfg,
	}
}

// Admit validates a registration request and, when every rule passes,
// appends it to the event's registration list.
func (s *Service) Admit(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "registration.admit")
	span.SetAttributes(attribute.Int64("event.id", req.EventID))
	defer span.End()

	res, err := s.admit(ctx, req)

	result := "ok"
	if err != nil {
		result = "error"
		if appErr, ok := apperr.As(err); ok {
			result = appErr.Code
		}
		span.SetStatus(codes.Error, result)
	}
	if s.prom != nil {
		s.prom.RegistrationResults.WithLabelValues(result).Inc()
	}

	return res, err
}

func (s *Service) admit(ctx context.Context, req Request) (Result, error) {
	log := s.log.With("event_id", req.EventID)

	if err := s.nonces.Verify(req.Nonce, auth.PurposeRegistration); err != nil {
		log.WarnContext(ctx, "registration rejected: nonce verification failed", "err", err)
		return Result{}, apperr.Security(msgSecurity)
	}

	if req.EventID <= 0 {
		log.WarnContext(ctx, "registration rejected: invalid event id")
		return Result{}, apperr.NotFound(apperr.CodeNotFound, msgInvalidEvent)
	}

	ev, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			log.WarnContext(ctx, "registration rejected: unknown event")
			return Result{}, apperr.NotFound(apperr.CodeNotFound, msgInvalidEvent)
		}
		log.ErrorContext(ctx, "registration failed: could not load event", "err", err)
		return Result{}, apperr.Storage(msgStorage, err)
	}
	if !ev.IsPublished() {
		log.InfoContext(ctx, "registration rejected: event not published", "status", ev.Status)
		return Result{}, apperr.NotFound(apperr.CodeNotFound, msgInvalidEvent)
	}

	name, email, err := NormalizeAndValidate(req.Name, req.Email)
	if err != nil {
		log.WarnContext(ctx, "registration rejected: invalid input", "reason", err.Error())
		return Result{}, err
	}
	log = log.With("email", email)

	now := s.cfg.Now().In(s.cfg.Location)

	start, ok := ev.StartTime(s.cfg.Location)
	switch {
	case ok && start.Before(now):
		log.InfoContext(ctx, "registration rejected: event in the past", "starts_at", ev.StartsAt)
		return Result{}, apperr.BusinessRule(apperr.CodeRegistrationClose, msgClosed)
	case !ok && ev.StartsAt != "":
		log.WarnContext(ctx, "invalid event start time; skipping past-date check", "starts_at", ev.StartsAt)
	}

	limit, limited := ev.Limit()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		list, err := s.store.LoadRegistrations(ctx, ev.ID)
		if err != nil {
			if errors.Is(err, event.ErrNotFound) {
				return Result{}, apperr.NotFound(apperr.CodeNotFound, msgInvalidEvent)
			}
			log.ErrorContext(ctx, "registration failed: could not load registrations", "err", err)
			return Result{}, apperr.Storage(msgStorage, err)
		}

		if list.HasEmail(email) {
			log.InfoContext(ctx, "registration rejected: duplicate email")
			return Result{}, apperr.Conflict(apperr.CodeAlreadyRegistered, msgDuplicate)
		}

		if limited && list.Count() >= limit {
			log.InfoContext(ctx, "registration rejected: event full", "limit", limit)
			return Result{}, apperr.Conflict(apperr.CodeEventFull, msgFull)
		}

		items := list.Append(registration.NewRecord(name, email, req.ClientIP, now))

		err = s.store.SaveRegistrations(ctx, ev.ID, items, list.Version)
		if errors.Is(err, event.ErrVersionConflict) {
			log.DebugContext(ctx, "registration list changed concurrently, retrying", "attempt", attempt)
			if s.prom != nil {
				s.prom.AdmissionConflicts.Inc()
			}
			continue
		}
		if err != nil {
			log.ErrorContext(ctx, "registration failed: could not save registrations", "err", err)
			return Result{}, apperr.Storage(msgStorage, err)
		}

		count := len(items)
		res := Result{
			Message:        msgSuccess,
			RegisteredName: name,
			CurrentCount:   count,
		}
		if limited {
			left := limit - count
			res.PlacesLeft = &left
			res.IsFull = count >= limit
		}

		log.InfoContext(ctx, "registration successful", "count", count)
		return res, nil
	}

	log.ErrorContext(ctx, "registration failed: too many concurrent updates", "attempts", s.cfg.MaxAttempts)
	return Result{}, apperr.Storage(msgStorage, event.ErrVersionConflict)
}
