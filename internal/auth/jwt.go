package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a nonce to one kind of request. A nonce issued for search
// is rejected by registration and vice versa.
type Purpose string

const (
	PurposeRegistration Purpose = "event_registration"
	PurposeSearch       Purpose = "event_search"
)

var (
	ErrMissingNonce = errors.New("missing nonce")
	ErrInvalidNonce = errors.New("invalid nonce")
	ErrWrongPurpose = errors.New("nonce issued for a different purpose")
)

type Claims struct {
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// Manager issues and verifies short lived, purpose scoped anti-forgery tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock swaps the time source, mainly for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Issue(purpose Purpose) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) Verify(raw string, purpose Purpose) error {
	if raw == "" {
		return ErrMissingNonce
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		return ErrInvalidNonce
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return ErrInvalidNonce
	}

	if claims.Purpose != purpose {
		return ErrWrongPurpose
	}

	return nil
}
