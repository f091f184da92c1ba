package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestJWTManager_RoundTrip(t *testing.T) {
	jm, err := NewJWTManager(testSecret, "billing-service", time.Hour)
	require.NoError(t, err)

	token, err := jm.GenerateToken("MERCH123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "MERCH123", claims.MerchantID)
	assert.Equal(t, "billing-service", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTManager_SecretTooShort(t *testing.T) {
	_, err := NewJWTManager([]byte("short"), "billing-service", time.Hour)
	assert.Error(t, err)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	jm, err := NewJWTManager(testSecret, "billing-service", time.Hour)
	require.NoError(t, err)
	// Separate manager with negative expiry issues already-expired tokens
	expired, err := NewJWTManager(testSecret, "billing-service", time.Hour)
	require.NoError(t, err)
	expired.expiry = -time.Minute

	token, err := expired.GenerateToken("MERCH123")
	require.NoError(t, err)

	_, err = jm.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	jm, err := NewJWTManager(testSecret, "billing-service", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTManager([]byte("ffffffffffffffffffffffffffffffff"), "billing-service", time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateToken("MERCH123")
	require.NoError(t, err)

	_, err = jm.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTManager_WrongIssuer(t *testing.T) {
	jm, err := NewJWTManager(testSecret, "billing-service", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTManager(testSecret, "another-service", time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateToken("MERCH123")
	require.NoError(t, err)

	_, err = jm.ValidateToken(token)
	assert.Error(t, err)
}
