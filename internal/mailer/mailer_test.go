package mailer

import (
	"testing"
	"time"

	"codeberg.org/cklabs/authserver/internal/config"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNew_FallsBackToLogSender(t *testing.T) {
	m := New(config.MailerConfig{})

	_, ok := m.(*logMailer)
	assert.True(t, ok)
}

func TestNew_PostmarkWhenTokenSet(t *testing.T) {
	m := New(config.MailerConfig{PostmarkServerToken: "server-token"})

	_, ok := m.(*postmarkMailer)
	assert.True(t, ok)
}

func TestThrottle_AllowsBurstThenBlocks(t *testing.T) {
	throttle := NewThrottle(rate.Every(time.Hour), 1)

	assert.True(t, throttle.Allow("user@email.com"))
	assert.False(t, throttle.Allow("user@email.com"), "second send within the window is blocked")
	assert.True(t, throttle.Allow("other@email.com"), "addresses are throttled independently")
}
