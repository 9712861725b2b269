package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/cklabs/authserver/internal/provider"
)

// represents a local identity record
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// contains the fields required to create a user
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	AvatarURL    string
}

// returned when a lookup matches no user
var ErrNotFound = errors.New("user not found")

// ConflictError reports a uniqueness violation on insert or link. Field
// names the colliding attribute: "username", "email" or "social".
// Reconciliation treats it as "state changed under us" and re-reads.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

// reports whether err is a uniqueness conflict
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// Store is the shared User + social-link storage contract. All methods
// are safe for concurrent use; uniqueness is enforced by the backing
// store so concurrent duplicate inserts fail with a ConflictError
// instead of creating two records.
type Store interface {
	// creates a password-registered user
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)

	// creates a user together with a social link holding the provider's
	// external id. All-or-nothing: no user row is left without its link.
	CreateUserWithSocial(ctx context.Context, params CreateUserParams, p provider.Provider, externalID string) (*User, error)

	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)

	// finds the user owning the given (provider, external id) pair
	FindBySocialID(ctx context.Context, p provider.Provider, externalID string) (*User, error)

	// sets the provider's external-id slot on the user's social link,
	// creating the link row if absent. Fails with a ConflictError if the
	// slot is already occupied or the external id belongs to another user.
	LinkSocialAccount(ctx context.Context, userID string, p provider.Provider, externalID string) error

	UsernameExists(ctx context.Context, username string) (bool, error)

	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
