package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domainauth "karta/internal/domain/auth"
	domainuser "karta/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
	ErrUserBlocked        = errors.New("auth: user blocked")
)

const (
	minPasswordRunes  = 8
	defaultSessionTTL = 24 * time.Hour
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenGenerator interface {
	NewToken() (string, error)
}

// Service owns account registration and session lifecycle. Listing
// ownership checks happen in the command handlers; this layer only
// answers "who is making the call".
type Service struct {
	Users      domainuser.Repository
	Sessions   domainauth.SessionStore
	Passwords  PasswordHasher
	Tokens     TokenGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

type LoginParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  *domainuser.User
	Token string
}

type ResolveResult struct {
	User    *domainuser.User
	Session *domainauth.Session
}

// Register creates the account and logs it in right away.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := s.checkWiring(); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(params.Password) < minPasswordRunes {
		return nil, ErrPasswordTooShort
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	account, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, account); err != nil {
		return nil, err
	}
	return s.startSession(ctx, account, "user registered")
}

func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := s.checkWiring(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(params.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := s.Users.ByEmail(ctx, email)
	switch {
	case errors.Is(err, domainuser.ErrNotFound):
		// Same answer as a wrong password: do not leak which
		// addresses have accounts.
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}
	if account.Blocked {
		return nil, ErrUserBlocked
	}
	if err := s.Passwords.Compare(account.PasswordHash, params.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, account, "user authenticated")
}

// Logout revokes the session. An unknown or already revoked token is
// not an error; the outcome is the same.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.checkWiring(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, domainauth.Token(token))
}

// ResolveToken maps a bearer token to its account. Expired sessions
// and sessions of deleted accounts are cleaned up on sight; a blocked
// account loses all of its sessions at once.
func (s *Service) ResolveToken(ctx context.Context, token string) (*ResolveResult, error) {
	if err := s.checkWiring(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainauth.ErrTokenRequired
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.Sessions.Delete(ctx, session.Token)
		return nil, domainauth.ErrSessionNotFound
	}
	account, err := s.Users.ByID(ctx, session.UserID)
	switch {
	case errors.Is(err, domainuser.ErrNotFound):
		_ = s.Sessions.Delete(ctx, session.Token)
		return nil, domainauth.ErrSessionNotFound
	case err != nil:
		return nil, err
	}
	if account.Blocked {
		_ = s.Sessions.DeleteByUser(ctx, account.ID)
		return nil, ErrUserBlocked
	}
	return &ResolveResult{User: account, Session: session}, nil
}

func (s *Service) startSession(ctx context.Context, account *domainuser.User, logMsg string) (*AuthResult, error) {
	token, err := s.Tokens.NewToken()
	if err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	session, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:  domainauth.Token(token),
		UserID: account.ID,
		TTL:    ttl,
		Now:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info(logMsg, "user_id", account.ID)
	}
	return &AuthResult{User: account, Token: token}, nil
}

func (s *Service) checkWiring() error {
	switch {
	case s.Users == nil:
		return errors.New("auth: user repository required")
	case s.Sessions == nil:
		return errors.New("auth: session store required")
	case s.Passwords == nil:
		return errors.New("auth: password hasher required")
	case s.Tokens == nil:
		return errors.New("auth: token generator required")
	}
	return nil
}
