package memory

import (
	"context"
	"sync"

	"karta/internal/domain/auth"
	"karta/internal/domain/user"
)

// SessionStore keeps auth sessions in memory, indexed by token.
type SessionStore struct {
	mu    sync.RWMutex
	items map[auth.Token]auth.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{items: make(map[auth.Token]auth.Session)}
}

func (s *SessionStore) Get(ctx context.Context, token auth.Token) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[token]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	session := stored
	return &session, nil
}

func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.Token] = *session
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, token auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
	return nil
}

// DeleteByUser removes every session belonging to the user.
func (s *SessionStore) DeleteByUser(ctx context.Context, id user.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.items {
		if session.UserID == id {
			delete(s.items, token)
		}
	}
	return nil
}
