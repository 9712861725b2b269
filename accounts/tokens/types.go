package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// represents an opaque bearer session credential bound to one user
type Token struct {
	Key       string    `json:"key"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// returned when a bearer key matches no token
var ErrNotFound = errors.New("token not found")

// Store is the session-token storage contract. IssueToken is
// get-or-create: at most one live token exists per user, and repeated
// issuance returns the existing token unchanged.
type Store interface {
	IssueToken(ctx context.Context, userID string) (*Token, error)
	FindByKey(ctx context.Context, key string) (*Token, error)
	FindByUserID(ctx context.Context, userID string) (*Token, error)
	RevokeToken(ctx context.Context, userID string) error
}

// token keys are 20 random bytes hex-encoded: 40 opaque characters,
// unguessable, with no embedded claims
const keyBytes = 20

func generateKey() (string, error) {
	buf := make([]byte, keyBytes)

	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
