package memory

import (
	"context"
	"strings"
	"sync"

	"karta/internal/domain/user"
)

// UserRepository is an in-memory account store with a unique email index.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[user.ID]user.User
	byEmail map[string]user.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[user.ID]user.User),
		byEmail: make(map[string]user.ID),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := stored
	return &u, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	stored := r.byID[id]
	u := stored
	return &u, nil
}

// Save stores the user, enforcing email uniqueness across accounts.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := normalizeEmail(u.Email)
	if existing, ok := r.byEmail[email]; ok && existing != u.ID {
		return user.ErrEmailAlreadyUsed
	}
	if prev, ok := r.byID[u.ID]; ok {
		prevEmail := normalizeEmail(prev.Email)
		if prevEmail != email {
			delete(r.byEmail, prevEmail)
		}
	}
	r.byID[u.ID] = *u
	r.byEmail[email] = u.ID
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
