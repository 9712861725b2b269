package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", 4)

	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)
	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	hash, err := HashPassword("password", 4)
	require.NoError(t, err)

	assert.False(t, VerifyPassword(hash, "wrong_password"))
}

func TestVerifyPassword_EmptyHash(t *testing.T) {
	// social-only accounts store no password hash and must never
	// authenticate by password
	assert.False(t, VerifyPassword("", ""))
	assert.False(t, VerifyPassword("", "anything"))
}

func TestHashPassword_DefaultCost(t *testing.T) {
	hash, err := HashPassword("password", 0)

	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "password"))
}
