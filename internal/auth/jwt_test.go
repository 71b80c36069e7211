package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, expiresAt, err := GenerateDeviceToken("dev-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(DeviceTokenTTL), expiresAt, time.Minute)

	claims, err := ParseDeviceToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", claims.Subject)
}

func TestParseDeviceToken_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "first-secret")
	token, _, err := GenerateDeviceToken("dev-1")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "second-secret")
	_, err = ParseDeviceToken(token)
	assert.Error(t, err)
}

func TestGenerateDeviceToken_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, _, err := GenerateDeviceToken("dev-1")
	assert.Error(t, err)
}
