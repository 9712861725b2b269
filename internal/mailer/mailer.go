package mailer

import (
	"context"
	"sync"

	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/logger"
	"golang.org/x/time/rate"
)

// Mailer delivers password-reset email. Delivery is a collaborator
// concern: handlers fire and forget, failures are logged, never
// surfaced to the requester.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// New picks the Postmark sender when a server token is configured and
// the log-only sender otherwise.
func New(cfg config.MailerConfig) Mailer {
	if cfg.PostmarkServerToken != "" {
		return newPostmarkMailer(cfg)
	}

	logger.Warn("no POSTMARK_SERVER_TOKEN configured, password reset email will only be logged")

	return &logMailer{}
}

// logMailer is the development sender: it logs instead of delivering.
type logMailer struct{}

func (m *logMailer) SendPasswordReset(_ context.Context, email, resetURL string) error {
	logger.Info("password reset email (dev sender)",
		"to", email,
		"reset_url", resetURL,
	)

	return nil
}

// Throttle caps reset sends per email address so the endpoint cannot
// be abused to flood a mailbox.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewThrottle allows burst sends immediately and then one send per
// interval given by limit.
func NewThrottle(limit rate.Limit, burst int) *Throttle {
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether a send to the address may proceed now.
func (t *Throttle) Allow(email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, ok := t.limiters[email]
	if !ok {
		limiter = rate.NewLimiter(t.limit, t.burst)
		t.limiters[email] = limiter
	}

	return limiter.Allow()
}
