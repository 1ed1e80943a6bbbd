package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired          = errors.New("user: id is required")
	ErrEmailRequired       = errors.New("user: email is required")
	ErrNameRequired        = errors.New("user: name is required")
	ErrPasswordHashMissing = errors.New("user: password hash is required")
	ErrEmailAlreadyUsed    = errors.New("user: email already used")
	ErrNotFound            = errors.New("user: not found")
)

type ID string

// User is an account that can own listings. The sync core treats the ID
// as an opaque string; everything else exists for the auth surface.
type User struct {
	ID           ID
	Email        string
	Name         string
	PasswordHash string
	Blocked      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, user *User) error
}

type CreateParams struct {
	ID           ID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

func NewUser(params CreateParams) (*User, error) {
	account := User{
		ID:           ID(strings.TrimSpace(string(params.ID))),
		Email:        normalizeEmail(params.Email),
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: params.PasswordHash,
	}
	switch {
	case account.ID == "":
		return nil, ErrIDRequired
	case account.Email == "":
		return nil, ErrEmailRequired
	case account.Name == "":
		return nil, ErrNameRequired
	case strings.TrimSpace(account.PasswordHash) == "":
		return nil, ErrPasswordHashMissing
	}
	account.CreatedAt = creationTime(params.CreatedAt)
	account.UpdatedAt = account.CreatedAt
	return &account, nil
}

func creationTime(at time.Time) time.Time {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
