package passwordreset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// single-use credential emailed to a user to prove mailbox ownership
type ResetToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// returned for unknown, expired or already-consumed tokens
var ErrInvalidToken = errors.New("invalid or expired reset token")

// how long a reset link stays usable
const tokenTTL = 24 * time.Hour

// Store persists outstanding reset tokens.
type Store interface {
	Create(ctx context.Context, userID string) (*ResetToken, error)

	// atomically looks up and deletes the token, so a link can only be
	// used once. Fails with ErrInvalidToken when missing or expired.
	Consume(ctx context.Context, token string) (*ResetToken, error)
}

func generateToken() (string, error) {
	buf := make([]byte, 20)

	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
