package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"karta/internal/domain/user"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrUserRequired    = errors.New("auth: user is required")
	ErrTTLInvalid      = errors.New("auth: ttl must be positive")
	ErrSessionNotFound = errors.New("auth: session not found")
)

type Token string

// Session ties a bearer token to an account for a bounded lifetime.
type Session struct {
	Token     Token
	UserID    user.ID
	CreatedAt time.Time
	ExpiresAt time.Time
}

type SessionStore interface {
	Get(ctx context.Context, token Token) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, token Token) error
	DeleteByUser(ctx context.Context, id user.ID) error
}

type CreateSessionParams struct {
	Token  Token
	UserID user.ID
	TTL    time.Duration
	Now    time.Time
}

func NewSession(params CreateSessionParams) (*Session, error) {
	switch {
	case strings.TrimSpace(string(params.Token)) == "":
		return nil, ErrTokenRequired
	case strings.TrimSpace(string(params.UserID)) == "":
		return nil, ErrUserRequired
	case params.TTL <= 0:
		return nil, ErrTTLInvalid
	}
	issued := params.Now
	if issued.IsZero() {
		issued = time.Now()
	}
	issued = issued.UTC()
	return &Session{
		Token:     params.Token,
		UserID:    params.UserID,
		CreatedAt: issued,
		ExpiresAt: issued.Add(params.TTL),
	}, nil
}

// Expired reports whether the session lapsed before now. A zero
// ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
