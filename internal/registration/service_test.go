package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a-szyszlo/event-manager/internal/apperr"
	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/domain/event"
	"github.com/a-szyszlo/event-manager/internal/domain/registration"
	"github.com/a-szyszlo/event-manager/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	warsaw, _ = time.LoadLocation("Europe/Warsaw")
	fixedNow  = time.Date(2030, 3, 1, 12, 0, 0, 0, warsaw)
)

type fakeNonces struct {
	err error
}

func (f fakeNonces) Verify(string, auth.Purpose) error { return f.err }

func intPtr(n int) *int { return &n }

func newTestService(t *testing.T, store Store, nonces NonceVerifier) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, nonces, log, nil, Config{
		Location:    warsaw,
		MaxAttempts: 32,
		Now:         func() time.Time { return fixedNow },
	})
}

func seedEvent(t *testing.T, s *memory.Store, req event.UpsertEventRequest) event.Event {
	t.Helper()
	if req.Status == "" {
		req.Status = event.StatusPublish
	}
	if req.Slug == "" {
		req.Slug = fmt.Sprintf("event-%d", req.ID)
	}
	ev, err := s.UpsertEvent(context.Background(), req)
	require.NoError(t, err)
	return ev
}

func requireAppErr(t *testing.T, err error, kind apperr.Kind, code string) *apperr.Error {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	require.Equal(t, kind, appErr.Kind)
	require.Equal(t, code, appErr.Code)
	require.NotEmpty(t, appErr.Message)
	return appErr
}

func TestAdmit_EndToEndUnlimited(t *testing.T) {
	store := memory.NewStore()
	ev := seedEvent(t, store, event.UpsertEventRequest{ID: 1, StartsAt: "2030-06-01 18:00:00"})
	svc := newTestService(t, store, fakeNonces{})

	res, err := svc.Admit(context.Background(), Request{
		EventID:  ev.ID,
		Name:     "Jan Kowalski",
		Email:    "Jan@Example.com ",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	assert.Equal(t, "Jan Kowalski", res.RegisteredName)
	assert.Equal(t, 1, res.CurrentCount)
	assert.Nil(t, res.PlacesLeft)
	assert.False(t, res.IsFull)
	assert.NotEmpty(t, res.Message)

	list, err := store.LoadRegistrations(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "jan@example.com", list.Items[0].Email)
	assert.Equal(t, "203.0.113.7", list.Items[0].SourceIP)
	assert.True(t, fixedNow.Equal(list.Items[0].RegisteredAt))
}

func TestAdmit_DuplicateEmail(t *testing.T) {
	store := memory.NewStore()
	ev := seedEvent(t, store, event.UpsertEventRequest{ID: 1})
	svc := newTestService(t, store, fakeNonces{})
	ctx := context.Background()

	_, err := svc.Admit(ctx, Request{EventID: ev.ID, Name: "Anna", Email: "anna@example.com"})
	require.NoError(t, err)

	_, err = svc.Admit(ctx, Request{EventID: ev.ID, Name: "Anna N", Email: "  ANNA@example.COM"})
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeAlreadyRegistered)

	list, err := store.LoadRegistrations(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count())
}

func TestAdmit_Capacity(t *testing.T) {
	store := memory.NewStore()
	ev := seedEvent(t, store, event.UpsertEventRequest{ID: 1, ParticipantLimit: intPtr(3)})
	svc := newTestService(t, store, fakeNonces{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := svc.Admit(ctx, Request{EventID: ev.ID, Name: "Guest", Email: fmt.Sprintf("g%d@example.com", i)})
		require.NoError(t, err)
		require.Equal(t, i, res.CurrentCount)
		require.NotNil(t, res.PlacesLeft)
		require.Equal(t, 3-i, *res.PlacesLeft)
		require.Equal(t, i == 3, res.IsFull)
	}

	_, err := svc.Admit(ctx, Request{EventID: ev.ID, Name: "Guest", Email: "g4@example.com"})
	requireAppErr(t, err, apperr.KindConflict, apperr.CodeEventFull)
}

func TestAdmit_Rejections(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, event.UpsertEventRequest{ID: 1, StartsAt: "2030-06-01 18:00:00"})
	seedEvent(t, store, event.UpsertEventRequest{ID: 2, Status: event.StatusDraft})
	seedEvent(t, store, event.UpsertEventRequest{ID: 3, StartsAt: "2030-03-01 11:59:00"})
	seedEvent(t, store, event.UpsertEventRequest{ID: 4, StartsAt: "2030-03-01 12:01:00"})

	valid := Request{EventID: 1, Name: "Jan Kowalski", Email: "jan@example.com"}

	tests := []struct {
		name   string
		mutate func(r *Request)
		kind   apperr.Kind
		code   string
	}{
		{"unknown event", func(r *Request) { r.EventID = 99 }, apperr.KindNotFound, apperr.CodeNotFound},
		{"non-positive event id", func(r *Request) { r.EventID = 0 }, apperr.KindNotFound, apperr.CodeNotFound},
		{"unpublished event", func(r *Request) { r.EventID = 2 }, apperr.KindNotFound, apperr.CodeNotFound},
		{"past event", func(r *Request) { r.EventID = 3 }, apperr.KindBusinessRule, apperr.CodeRegistrationClose},
		{"empty name", func(r *Request) { r.Name = "   " }, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"short name", func(r *Request) { r.Name = " J " }, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"long name", func(r *Request) { r.Name = strings.Repeat("ż", 101) }, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"markup in name", func(r *Request) { r.Name = "<b>Jan</b>" }, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"bad email", func(r *Request) { r.Email = "jan@" }, apperr.KindValidation, apperr.CodeInvalidRequest},
		{"long email", func(r *Request) {
			r.Email = strings.Repeat("a", 64) + "@" + strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "." + strings.Repeat("d", 63) + ".pl"
		}, apperr.KindValidation, apperr.CodeInvalidRequest},
	}

	svc := newTestService(t, store, fakeNonces{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := svc.Admit(context.Background(), req)
			requireAppErr(t, err, tt.kind, tt.code)
		})
	}

	t.Run("unpublished looks like unknown", func(t *testing.T) {
		unknown := Request{EventID: 99, Name: "J", Email: "jan@"}
		draft := unknown
		draft.EventID = 2

		_, errUnknown := svc.Admit(context.Background(), unknown)
		_, errDraft := svc.Admit(context.Background(), draft)
		require.Equal(t, errUnknown.Error(), errDraft.Error())
		requireAppErr(t, errDraft, apperr.KindNotFound, apperr.CodeNotFound)
	})

	t.Run("starting later today is still open", func(t *testing.T) {
		req := valid
		req.EventID = 4
		_, err := svc.Admit(context.Background(), req)
		require.NoError(t, err)
	})
}

func TestAdmit_PastEventMessage(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, event.UpsertEventRequest{ID: 1, StartsAt: "2020-01-01 10:00:00"})
	svc := newTestService(t, store, fakeNonces{})

	_, err := svc.Admit(context.Background(), Request{EventID: 1, Name: "Jan", Email: "jan@example.com"})

	appErr := requireAppErr(t, err, apperr.KindBusinessRule, apperr.CodeRegistrationClose)
	require.Contains(t, appErr.Message, "registration closed")
}

func TestAdmit_MalformedStartDoesNotBlock(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, event.UpsertEventRequest{ID: 1, StartsAt: "next friday"})
	svc := newTestService(t, store, fakeNonces{})

	_, err := svc.Admit(context.Background(), Request{EventID: 1, Name: "Jan", Email: "jan@example.com"})
	require.NoError(t, err)
}

func TestAdmit_InvalidNonceComesFirst(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store, fakeNonces{err: auth.ErrInvalidNonce})

	// even an unknown event and a bad name report the security failure
	_, err := svc.Admit(context.Background(), Request{EventID: 42, Name: "x"})
	requireAppErr(t, err, apperr.KindSecurity, apperr.CodeInvalidNonce)
}

type failingStore struct {
	Store
	saveErr error
}

func (f failingStore) SaveRegistrations(context.Context, int64, []registration.Registration, int64) error {
	return f.saveErr
}

func TestAdmit_StorageFailure(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, event.UpsertEventRequest{ID: 1})

	t.Run("write error", func(t *testing.T) {
		svc := newTestService(t, failingStore{Store: store, saveErr: errors.New("disk full")}, fakeNonces{})
		_, err := svc.Admit(context.Background(), Request{EventID: 1, Name: "Jan", Email: "jan@example.com"})
		requireAppErr(t, err, apperr.KindStorage, apperr.CodeStorage)
	})

	t.Run("conflicts exhaust attempts", func(t *testing.T) {
		svc := newTestService(t, failingStore{Store: store, saveErr: event.ErrVersionConflict}, fakeNonces{})
		_, err := svc.Admit(context.Background(), Request{EventID: 1, Name: "Jan", Email: "jan@example.com"})
		requireAppErr(t, err, apperr.KindStorage, apperr.CodeStorage)
		require.ErrorIs(t, err, event.ErrVersionConflict)
	})
}

func TestAdmit_ConcurrentNeverOvershootsLimit(t *testing.T) {
	store := memory.NewStore()
	ev := seedEvent(t, store, event.UpsertEventRequest{ID: 1, ParticipantLimit: intPtr(5)})
	svc := newTestService(t, store, fakeNonces{})

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, full := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), Request{
				EventID: ev.ID,
				Name:    fmt.Sprintf("User %d", i),
				Email:   fmt.Sprintf("user%d@example.com", i),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.KindOf(err) == apperr.KindConflict:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 5, successes)
	require.Equal(t, workers-5, full)

	list, err := store.LoadRegistrations(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Equal(t, 5, list.Count())
}

func TestAdmit_ConcurrentSameEmailStoredOnce(t *testing.T) {
	store := memory.NewStore()
	ev := seedEvent(t, store, event.UpsertEventRequest{ID: 1})
	svc := newTestService(t, store, fakeNonces{})

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), Request{EventID: ev.ID, Name: "Jan", Email: "Jan@Example.com"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if apperr.KindOf(err) != apperr.KindConflict {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)

	list, err := store.LoadRegistrations(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count())
}
