package tokens

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory maps, mirroring the
// Postgres semantics: one live token per user, idempotent issuance.
type MemoryStore struct {
	mu     sync.Mutex
	byKey  map[string]*Token
	byUser map[string]*Token
}

// creates a new in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[string]*Token),
		byUser: make(map[string]*Token),
	}
}

func (s *MemoryStore) IssueToken(_ context.Context, userID string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byUser[userID]; ok {
		return copyToken(existing), nil
	}

	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	token := &Token{
		Key:       key,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	s.byKey[token.Key] = token
	s.byUser[userID] = token

	return copyToken(token), nil
}

func (s *MemoryStore) FindByKey(_ context.Context, key string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}

	return copyToken(token), nil
}

func (s *MemoryStore) FindByUserID(_ context.Context, userID string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}

	return copyToken(token), nil
}

func (s *MemoryStore) RevokeToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byUser[userID]
	if !ok {
		return nil
	}

	delete(s.byKey, token.Key)
	delete(s.byUser, userID)

	return nil
}

func copyToken(t *Token) *Token {
	clone := *t
	return &clone
}
