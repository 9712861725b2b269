package passwordreset

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map for tests and
// local development.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*ResetToken
}

// creates a new in-memory reset-token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*ResetToken)}
}

func (s *MemoryStore) Create(_ context.Context, userID string) (*ResetToken, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reset := &ResetToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(tokenTTL),
	}
	s.tokens[token] = reset

	clone := *reset

	return &clone, nil
}

func (s *MemoryStore) Consume(_ context.Context, token string) (*ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reset, ok := s.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}

	delete(s.tokens, token)

	if time.Now().After(reset.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	clone := *reset

	return &clone, nil
}
