package mailer

import (
	"context"
	"fmt"

	"codeberg.org/cklabs/authserver/internal/config"
	"github.com/mrz1836/postmark"
)

type postmarkMailer struct {
	client *postmark.Client
	cfg    config.MailerConfig
}

func newPostmarkMailer(cfg config.MailerConfig) *postmarkMailer {
	return &postmarkMailer{
		// account token is only needed for account-management APIs,
		// not for sending
		client: postmark.NewClient(cfg.PostmarkServerToken, ""),
		cfg:    cfg,
	}
}

func (m *postmarkMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.cfg.FromEmail,
		To:       email,
		Subject:  "Reset your password",
		TextBody: "Follow this link to choose a new password:\n\n" + resetURL + "\n\nIf you did not request a reset, you can ignore this email.",
		Tag:      "password-reset",
	})
	if err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark rejected reset email: %d - %s", resp.ErrorCode, resp.Message)
	}

	return nil
}
