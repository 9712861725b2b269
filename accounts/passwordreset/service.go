package passwordreset

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/logger"
	"codeberg.org/cklabs/authserver/internal/mailer"
)

// Service runs the reset flow: issue a token and email its link, then
// later exchange the token for a password update.
type Service struct {
	users        users.Store
	store        Store
	mail         mailer.Mailer
	throttle     *mailer.Throttle
	resetURLBase string
}

func NewService(userStore users.Store, store Store, mail mailer.Mailer, throttle *mailer.Throttle, resetURLBase string) *Service {
	return &Service{
		users:        userStore,
		store:        store,
		mail:         mail,
		throttle:     throttle,
		resetURLBase: resetURLBase,
	}
}

// Request issues a reset token and sends exactly one email when the
// address belongs to a user. Unknown addresses are silently ignored:
// the endpoint's response never reveals whether an account exists.
func (s *Service) Request(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		logger.Debug("password reset requested for unknown email")
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to look up email: %w", err)
	}

	if s.throttle != nil && !s.throttle.Allow(email) {
		logger.Warn("password reset throttled", "user_id", user.ID)
		return nil
	}

	reset, err := s.store.Create(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	// delivery failures are logged, not surfaced: the response body is
	// identical for every request
	if err := s.mail.SendPasswordReset(ctx, email, s.resetURL(reset.Token)); err != nil {
		logger.ErrorErr(err, "failed to send password reset email", "user_id", user.ID)
	}

	return nil
}

// Confirm exchanges a valid token for a password update.
func (s *Service) Confirm(ctx context.Context, token, passwordHash string) error {
	reset, err := s.store.Consume(ctx, token)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, reset.UserID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func (s *Service) resetURL(token string) string {
	return s.resetURLBase + "?token=" + url.QueryEscape(token)
}
