package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pass1234")
	require.NoError(t, err)
	require.NotEqual(t, "pass1234", hash)

	assert.True(t, VerifyPassword("pass1234", hash))
	assert.False(t, VerifyPassword("wrong-pass", hash))
}

func TestNewResetToken(t *testing.T) {
	raw, hash, err := NewResetToken()
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.NotEqual(t, raw, hash)

	// The stored hash must be recomputable from the raw token the user
	// brings back.
	assert.Equal(t, hash, HashResetToken(raw))

	raw2, hash2, err := NewResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
	assert.NotEqual(t, hash, hash2)
}
