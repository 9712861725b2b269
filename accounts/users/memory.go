package users

import (
	"context"
	"sync"
	"time"

	"codeberg.org/cklabs/authserver/internal/provider"
	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory maps. Used by tests and
// local development; enforces the same uniqueness rules the Postgres
// schema does, so reconciliation races behave identically.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*User
	byEmail  map[string]string                       // email -> user id
	byName   map[string]string                       // username -> user id
	bySocial map[provider.Provider]map[string]string // external id -> user id
	slots    map[string]map[provider.Provider]string // user id -> provider -> external id
}

// creates a new in-memory user store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*User),
		byEmail:  make(map[string]string),
		byName:   make(map[string]string),
		bySocial: make(map[provider.Provider]map[string]string),
		slots:    make(map[string]map[provider.Provider]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, params CreateUserParams) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(params)
}

func (s *MemoryStore) CreateUserWithSocial(
	_ context.Context,
	params CreateUserParams,
	p provider.Provider,
	externalID string,
) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// check the social uniqueness up front so the user insert and the
	// link are atomic under the lock
	if _, taken := s.socialIndex(p)[externalID]; taken {
		return nil, &ConflictError{Field: "social"}
	}

	user, err := s.createLocked(params)
	if err != nil {
		return nil, err
	}

	s.socialIndex(p)[externalID] = user.ID
	s.slotsFor(user.ID)[p] = externalID

	return user, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(user), nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(s.byID[id]), nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(s.byID[id]), nil
}

func (s *MemoryStore) FindBySocialID(_ context.Context, p provider.Provider, externalID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.socialIndex(p)[externalID]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(s.byID[id]), nil
}

func (s *MemoryStore) LinkSocialAccount(
	_ context.Context,
	userID string,
	p provider.Provider,
	externalID string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[userID]; !ok {
		return ErrNotFound
	}

	if owner, taken := s.socialIndex(p)[externalID]; taken && owner != userID {
		return &ConflictError{Field: "social"}
	}

	if existing, set := s.slotsFor(userID)[p]; set && existing != externalID {
		// slot already holds a different external id; never reassign
		return &ConflictError{Field: "social"}
	}

	s.socialIndex(p)[externalID] = userID
	s.slotsFor(userID)[p] = externalID

	return nil
}

func (s *MemoryStore) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byName[username]

	return ok, nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}

	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) createLocked(params CreateUserParams) (*User, error) {
	if _, taken := s.byName[params.Username]; taken {
		return nil, &ConflictError{Field: "username"}
	}

	// email uniqueness only applies to collected emails: deployments
	// that register by username alone store an empty address
	if _, taken := s.byEmail[params.Email]; taken && params.Email != "" {
		return nil, &ConflictError{Field: "email"}
	}

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		AvatarURL:    params.AvatarURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.byID[user.ID] = user
	s.byName[user.Username] = user.ID
	if user.Email != "" {
		s.byEmail[user.Email] = user.ID
	}

	return copyUser(user), nil
}

func (s *MemoryStore) socialIndex(p provider.Provider) map[string]string {
	index, ok := s.bySocial[p]
	if !ok {
		index = make(map[string]string)
		s.bySocial[p] = index
	}

	return index
}

func (s *MemoryStore) slotsFor(userID string) map[provider.Provider]string {
	slots, ok := s.slots[userID]
	if !ok {
		slots = make(map[provider.Provider]string)
		s.slots[userID] = slots
	}

	return slots
}

func copyUser(u *User) *User {
	clone := *u
	return &clone
}
